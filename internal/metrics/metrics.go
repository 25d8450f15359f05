// Package metrics accumulates per-frame detection counts and timings
// across one pipeline run and produces a read-only summary.
package metrics

import (
	"time"
)

// Stage names used when recording skipped frames.
const (
	StageSource   = "source"
	StageDetector = "detector"
	StageSink     = "sink"
)

// HistogramBucket counts the frames whose per-frame detection count
// fell into one bucket.
type HistogramBucket struct {
	Label  string `json:"label" yaml:"label"`
	Frames int    `json:"frames" yaml:"frames"`
}

// Bucket upper bounds for the per-frame detection count distribution.
// The last bucket is open-ended.
var bucketBounds = []struct {
	label string
	max   int // inclusive
}{
	{"0", 0},
	{"1-2", 2},
	{"3-5", 5},
	{"6-10", 10},
	{"11+", -1},
}

// LatencyStats summarises per-frame inference latency.
type LatencyStats struct {
	Count   int     `json:"count" yaml:"count"`
	MinMS   float64 `json:"min_ms" yaml:"min_ms"`
	AvgMS   float64 `json:"avg_ms" yaml:"avg_ms"`
	MaxMS   float64 `json:"max_ms" yaml:"max_ms"`
	TotalMS float64 `json:"total_ms" yaml:"total_ms"`
}

// RunMetrics is the finalized summary of one pipeline run. It is
// created by Aggregator.Finalize and read-only from then on; fields
// describing the run itself (paths, model, terminal state) are filled
// in by the caller that owns the run.
type RunMetrics struct {
	RunID      string `json:"run_id" yaml:"run_id"`
	InputPath  string `json:"input_path" yaml:"input_path"`
	OutputPath string `json:"output_path" yaml:"output_path"`

	State     string `json:"state" yaml:"state"`
	ErrorKind string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`

	TotalFrames     int            `json:"total_frames" yaml:"total_frames"`
	FramesProcessed int            `json:"frames_processed" yaml:"frames_processed"`
	FramesSkipped   int            `json:"frames_skipped" yaml:"frames_skipped"`
	SkippedByStage  map[string]int `json:"skipped_by_stage,omitempty" yaml:"skipped_by_stage,omitempty"`

	TotalDetections       int               `json:"total_detections" yaml:"total_detections"`
	AvgDetectionsPerFrame float64           `json:"avg_detections_per_frame" yaml:"avg_detections_per_frame"`
	DetectionHistogram    []HistogramBucket `json:"detection_histogram" yaml:"detection_histogram"`

	Inference LatencyStats `json:"inference" yaml:"inference"`

	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
	ProcessingFPS   float64 `json:"processing_fps" yaml:"processing_fps"`

	Model         string  `json:"model" yaml:"model"`
	ConfThreshold float64 `json:"conf_threshold" yaml:"conf_threshold"`
	InferenceSize int     `json:"inference_size,omitempty" yaml:"inference_size,omitempty"`
	Device        string  `json:"device" yaml:"device"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Aggregator accumulates per-frame results for a single run. It is not
// safe for concurrent use; each pipeline run owns its own instance.
// Aggregation is purely additive: once a frame is recorded there is no
// retroactive correction.
type Aggregator struct {
	started time.Time

	processed      int
	skipped        int
	skippedByStage map[string]int

	detections int
	buckets    []int

	latCount int
	latMin   time.Duration
	latMax   time.Duration
	latTotal time.Duration

	finalized *RunMetrics
}

// NewAggregator starts the wall clock for a new run.
func NewAggregator() *Aggregator {
	return &Aggregator{
		started:        time.Now(),
		skippedByStage: make(map[string]int),
		buckets:        make([]int, len(bucketBounds)),
	}
}

// Record accounts for one frame that completed the detector stage.
// Called exactly once per such frame.
func (a *Aggregator) Record(frameIndex, detectionCount int, inferenceLatency time.Duration) {
	a.processed++
	a.detections += detectionCount
	a.buckets[bucketIndex(detectionCount)]++

	if a.latCount == 0 || inferenceLatency < a.latMin {
		a.latMin = inferenceLatency
	}
	if inferenceLatency > a.latMax {
		a.latMax = inferenceLatency
	}
	a.latTotal += inferenceLatency
	a.latCount++
}

// RecordSkipped accounts for a frame dropped before it reached the sink,
// due to a decode or inference failure under the skip policy.
func (a *Aggregator) RecordSkipped(frameIndex int, stage string) {
	a.skipped++
	a.skippedByStage[stage]++
}

// Finalize closes the run and returns its summary. Idempotent: repeated
// calls return the same snapshot.
func (a *Aggregator) Finalize() *RunMetrics {
	if a.finalized != nil {
		return a.finalized
	}

	finished := time.Now()
	duration := finished.Sub(a.started)

	m := &RunMetrics{
		TotalFrames:     a.processed + a.skipped,
		FramesProcessed: a.processed,
		FramesSkipped:   a.skipped,
		TotalDetections: a.detections,
		StartedAt:       a.started,
		FinishedAt:      finished,
		DurationSeconds: duration.Seconds(),
	}
	if a.skipped > 0 {
		m.SkippedByStage = make(map[string]int, len(a.skippedByStage))
		for stage, n := range a.skippedByStage {
			m.SkippedByStage[stage] = n
		}
	}
	if a.processed > 0 {
		m.AvgDetectionsPerFrame = float64(a.detections) / float64(a.processed)
	}
	if duration > 0 {
		m.ProcessingFPS = float64(a.processed) / duration.Seconds()
	}

	m.DetectionHistogram = make([]HistogramBucket, len(bucketBounds))
	for i, b := range bucketBounds {
		m.DetectionHistogram[i] = HistogramBucket{Label: b.label, Frames: a.buckets[i]}
	}

	m.Inference = LatencyStats{
		Count:   a.latCount,
		TotalMS: durationMS(a.latTotal),
	}
	if a.latCount > 0 {
		m.Inference.MinMS = durationMS(a.latMin)
		m.Inference.MaxMS = durationMS(a.latMax)
		m.Inference.AvgMS = durationMS(a.latTotal / time.Duration(a.latCount))
	}

	a.finalized = m
	return m
}

func bucketIndex(count int) int {
	for i, b := range bucketBounds {
		if b.max >= 0 && count <= b.max {
			return i
		}
	}
	return len(bucketBounds) - 1
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
