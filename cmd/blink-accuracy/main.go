// blink-accuracy scores a blinkwatch results file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/teslashibe/blinkwatch/internal/log"
	"github.com/teslashibe/blinkwatch/pkg/resultlog"
)

func main() {
	path := flag.String("results", "blink_detection_results.csv", "Results CSV written by blinkwatch")
	truthPath := flag.String("truth", "", "Ground-truth CSV (frame_number,true_blink) replacing the file's reference column")
	asJSON := flag.Bool("json", false, "Print the score as JSON")
	flag.Parse()

	rows, err := resultlog.Read(*path)
	if err != nil {
		log.Error("reading results", "path", *path, "error", err)
		os.Exit(1)
	}

	if *truthPath != "" {
		truth, err := resultlog.LoadGroundTruth(*truthPath)
		if err != nil {
			log.Error("reading ground truth", "path", *truthPath, "error", err)
			os.Exit(1)
		}
		for i := range rows {
			rows[i].Truth = truth[rows[i].Frame]
		}
	}

	score := resultlog.Evaluate(rows)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(score)
		return
	}

	fmt.Printf("Detected blinks: %d\n", score.DetectedCount)
	fmt.Printf("True blinks:     %d\n", score.TrueCount)
	fmt.Printf("Accuracy:        %.2f%%\n", score.Accuracy)
	fmt.Printf("Precision:       %.3f\n", score.Precision)
	fmt.Printf("Recall:          %.3f\n", score.Recall)
	fmt.Printf("F1:              %.3f\n", score.F1)
}
