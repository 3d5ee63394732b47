// Package resultlog records per-frame blink decisions as CSV and scores
// them against a reference labelling.
//
// The file format is
//
//	Frame Number,Detected Blink,True Blink
//	1,No Blink,No Blink
//	2,True Blink,True Blink
package resultlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Labels used in the Detected and True columns.
const (
	LabelBlink   = "True Blink"
	LabelNoBlink = "No Blink"
)

// Header is the first line of every results file.
var Header = []string{"Frame Number", "Detected Blink", "True Blink"}

// ErrBadHeader is returned when a file does not start with Header.
var ErrBadHeader = errors.New("resultlog: unexpected header")

// Row is one frame's outcome.
type Row struct {
	Frame    int
	Detected bool
	Truth    bool
}

// Label returns the column text for a blink flag.
func Label(blink bool) string {
	if blink {
		return LabelBlink
	}
	return LabelNoBlink
}

func parseLabel(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case LabelBlink:
		return true, nil
	case LabelNoBlink:
		return false, nil
	}
	return false, fmt.Errorf("resultlog: unknown label %q", s)
}

// Writer appends rows to a results file. Each row is flushed as it is
// written so the file is usable while the program runs.
type Writer struct {
	mu    sync.Mutex
	f     *os.File
	w     *csv.Writer
	truth map[int]bool
	rows  int
}

// Create truncates path and writes the header. truth, when non-nil,
// supplies the reference label per frame; frames it does not mention
// are reference non-blinks. With a nil truth the reference column
// mirrors the detection.
func Create(path string, truth map[int]bool) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("resultlog: %w", err)
	}
	w := &Writer{f: f, w: csv.NewWriter(f), truth: truth}
	if err := w.write(Header); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Append records frame's detection.
func (w *Writer) Append(frame int, detected bool) error {
	truth := detected
	if w.truth != nil {
		truth = w.truth[frame]
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows++
	return w.write([]string{strconv.Itoa(frame), Label(detected), Label(truth)})
}

func (w *Writer) write(rec []string) error {
	if err := w.w.Write(rec); err != nil {
		return fmt.Errorf("resultlog: write: %w", err)
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("resultlog: flush: %w", err)
	}
	return nil
}

// Rows returns how many rows have been appended.
func (w *Writer) Rows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Read parses a results file.
func Read(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("resultlog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads results CSV from r.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrBadHeader
		}
		return nil, fmt.Errorf("resultlog: %w", err)
	}
	for i := range Header {
		if strings.TrimSpace(head[i]) != Header[i] {
			return nil, fmt.Errorf("%w: %q", ErrBadHeader, strings.Join(head, ","))
		}
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resultlog: %w", err)
		}

		line, _ := cr.FieldPos(0)
		frame, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("resultlog: line %d: frame number: %w", line, err)
		}
		detected, err := parseLabel(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		truth, err := parseLabel(rec[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, Row{Frame: frame, Detected: detected, Truth: truth})
	}
}

// LoadGroundTruth reads a reference labelling with header
// frame_number,true_blink where true_blink is 1/0, true/false or a label.
func LoadGroundTruth(path string) (map[int]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("resultlog: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("resultlog: ground truth header: %w", err)
	}

	truth := make(map[int]bool)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return truth, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resultlog: ground truth: %w", err)
		}
		frame, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("resultlog: ground truth frame %q: %w", rec[0], err)
		}
		v, err := parseTruth(rec[1])
		if err != nil {
			return nil, err
		}
		truth[frame] = v
	}
}

func parseTruth(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	return parseLabel(s)
}
