// Package report writes finalized run metrics to structured files next
// to the annotated output video.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crowdmark/crowdmark/internal/metrics"
)

// Format selects the report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a report format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown report format %q (want json, yaml or csv)", s)
}

// DefaultPath derives the sidecar report path for an output video,
// e.g. clip_annotated.mp4 -> clip_annotated.metrics.json.
func DefaultPath(outputVideo string, format Format) string {
	stem := strings.TrimSuffix(outputVideo, filepath.Ext(outputVideo))
	return stem + ".metrics." + string(format)
}

// Write encodes one run's metrics to path in the given format.
func Write(path string, m *metrics.RunMetrics, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(path, m)
	case FormatYAML:
		return writeYAML(path, m)
	case FormatCSV:
		return WriteCSV(path, []*metrics.RunMetrics{m})
	}
	return fmt.Errorf("unknown report format %q", format)
}

func writeJSON(path string, m *metrics.RunMetrics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func writeYAML(path string, m *metrics.RunMetrics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// csvHeader is the column order for CSV reports and batch summaries.
var csvHeader = []string{
	"run_id", "input_path", "output_path", "state", "error_kind",
	"total_frames", "frames_processed", "frames_skipped",
	"total_detections", "avg_detections_per_frame",
	"avg_inference_ms", "total_inference_ms",
	"duration_seconds", "processing_fps",
	"model", "conf_threshold", "device",
}

// WriteCSV writes one row per run, suitable both for single-run
// sidecars and for the batch summary in directory mode.
func WriteCSV(path string, runs []*metrics.RunMetrics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, m := range runs {
		row := []string{
			m.RunID, m.InputPath, m.OutputPath, m.State, m.ErrorKind,
			strconv.Itoa(m.TotalFrames),
			strconv.Itoa(m.FramesProcessed),
			strconv.Itoa(m.FramesSkipped),
			strconv.Itoa(m.TotalDetections),
			formatFloat(m.AvgDetectionsPerFrame),
			formatFloat(m.Inference.AvgMS),
			formatFloat(m.Inference.TotalMS),
			formatFloat(m.DurationSeconds),
			formatFloat(m.ProcessingFPS),
			m.Model,
			formatFloat(m.ConfThreshold),
			m.Device,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
