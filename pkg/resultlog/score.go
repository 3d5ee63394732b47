package resultlog

import "fmt"

// Score summarises a results file.
type Score struct {
	Frames        int
	DetectedCount int // frames labelled as detected blinks
	TrueCount     int // frames labelled as reference blinks

	TruePositives  int
	FalsePositives int
	FalseNegatives int

	// Accuracy is detected blinks over reference blinks, in percent. It
	// exceeds 100 when the detector over-counts. Zero when there are no
	// reference blinks.
	Accuracy float64

	Precision float64
	Recall    float64
	F1        float64
}

// Evaluate scores rows.
func Evaluate(rows []Row) Score {
	var s Score
	s.Frames = len(rows)
	for _, r := range rows {
		if r.Detected {
			s.DetectedCount++
		}
		if r.Truth {
			s.TrueCount++
		}
		switch {
		case r.Detected && r.Truth:
			s.TruePositives++
		case r.Detected:
			s.FalsePositives++
		case r.Truth:
			s.FalseNegatives++
		}
	}

	if s.TrueCount > 0 {
		s.Accuracy = float64(s.DetectedCount) / float64(s.TrueCount) * 100
	}
	if d := s.TruePositives + s.FalsePositives; d > 0 {
		s.Precision = float64(s.TruePositives) / float64(d)
	}
	if d := s.TruePositives + s.FalseNegatives; d > 0 {
		s.Recall = float64(s.TruePositives) / float64(d)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

func (s Score) String() string {
	return fmt.Sprintf("frames=%d detected=%d true=%d accuracy=%.2f%% precision=%.3f recall=%.3f f1=%.3f",
		s.Frames, s.DetectedCount, s.TrueCount, s.Accuracy, s.Precision, s.Recall, s.F1)
}
