// Package pipeline defines the streaming detection-and-annotation
// pipeline: the contracts its stages implement, the value types that
// flow between them, and the single-pass orchestration loop.
package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/crowdmark/crowdmark/internal/logger"
	"github.com/crowdmark/crowdmark/internal/metrics"
)

// Policy decides what happens when a single frame fails to decode or
// infer.
type Policy string

const (
	// PolicySkip counts the frame as skipped and continues. This is
	// the default.
	PolicySkip Policy = "skip"

	// PolicyAbort stops the run on the first bad frame.
	PolicyAbort Policy = "abort"
)

// ParsePolicy validates a frame-error policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicySkip, PolicyAbort:
		return Policy(s), nil
	case "":
		return PolicySkip, nil
	}
	return "", errors.New("frame error policy must be \"skip\" or \"abort\"")
}

// State is the pipeline lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Result carries a run's terminal state, its causing error when
// aborted, and the finalized metrics. Metrics are always present, even
// for runs that abort before the first frame.
type Result struct {
	State   State
	Err     error
	Metrics *metrics.RunMetrics
}

// Pipeline wires a frame source, detector, annotator and frame sink
// into a single-pass loop. Resources are opened lazily inside Run so
// that a source failure never creates a sink, and everything opened is
// closed before Run returns.
//
// A Pipeline value is good for one Run.
type Pipeline struct {
	// OpenSource opens the input video.
	OpenSource func() (FrameSource, error)

	// OpenSink opens the output video with dimensions and frame rate
	// copied from the source metadata.
	OpenSink func(meta SourceMetadata) (FrameSink, error)

	Detector  Detector
	Annotator Annotator

	// Policy is the frame-error policy for decode and inference
	// failures.
	Policy Policy

	// OnAnnotated, when set, observes every annotated frame after it
	// has been written to the sink. Used for live preview.
	OnAnnotated func(frame *Frame, dets []Detection)

	// ProgressEvery logs progress after this many processed frames.
	// Zero disables progress logging.
	ProgressEvery int

	state State
}

// State reports the pipeline's current lifecycle state.
func (p *Pipeline) State() State {
	return p.state
}

// Run executes the pipeline until the source is exhausted, an
// unrecoverable error occurs, or ctx is canceled. Cancellation is
// honored at frame boundaries only, so the sink is always left
// finalized and valid for every frame already written.
func (p *Pipeline) Run(ctx context.Context) Result {
	log := logger.WithComponent("pipeline")
	agg := metrics.NewAggregator()

	src, err := p.OpenSource()
	if err != nil {
		return p.abort(agg, err)
	}
	defer closeQuietly(src.Close, "source")

	meta := src.Metadata()
	sink, err := p.OpenSink(meta)
	if err != nil {
		return p.abort(agg, err)
	}
	defer closeQuietly(sink.Close, "sink")

	p.state = StateRunning
	total := 0
	if meta.FrameCount != nil {
		total = *meta.FrameCount
	}
	log.Info().
		Int("width", meta.Width).
		Int("height", meta.Height).
		Float64("fps", meta.FPS).
		Int("frames", total).
		Msg("pipeline running")

	for {
		if err := ctx.Err(); err != nil {
			return p.abort(agg, err)
		}

		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if p.Policy == PolicyAbort {
				return p.abort(agg, err)
			}
			agg.RecordSkipped(frameIndexOf(err), metrics.StageSource)
			log.Warn().Err(err).Msg("skipping frame after decode failure")
			continue
		}

		start := time.Now()
		dets, err := p.Detector.Detect(frame)
		latency := time.Since(start)
		if err != nil {
			if p.Policy == PolicyAbort {
				return p.abort(agg, err)
			}
			// Never write a partially annotated frame.
			agg.RecordSkipped(frame.Index, metrics.StageDetector)
			log.Warn().Err(err).Msg("skipping frame after inference failure")
			continue
		}

		annotated := p.Annotator.Draw(frame, dets)
		if err := sink.Write(annotated); err != nil {
			// The frame was emitted by the source, so the totals still
			// account for it.
			agg.RecordSkipped(frame.Index, metrics.StageSink)
			return p.abort(agg, err)
		}
		agg.Record(frame.Index, len(dets), latency)

		if p.OnAnnotated != nil {
			p.OnAnnotated(annotated, dets)
		}
		if p.ProgressEvery > 0 && (frame.Index+1)%p.ProgressEvery == 0 {
			ev := log.Info().Int("frame", frame.Index+1)
			if total > 0 {
				ev = ev.Int("of", total)
			}
			ev.Msg("progress")
		}
	}

	p.state = StateCompleted
	m := agg.Finalize()
	m.State = p.state.String()
	log.Info().
		Int("frames", m.FramesProcessed).
		Int("skipped", m.FramesSkipped).
		Int("detections", m.TotalDetections).
		Float64("fps", m.ProcessingFPS).
		Msg("pipeline completed")
	return Result{State: p.state, Metrics: m}
}

func (p *Pipeline) abort(agg *metrics.Aggregator, cause error) Result {
	p.state = StateAborted
	m := agg.Finalize()
	m.State = p.state.String()
	m.ErrorKind = ErrorKind(cause)
	m.Error = cause.Error()
	logger.WithComponent("pipeline").Error().
		Err(cause).
		Str("kind", m.ErrorKind).
		Msg("pipeline aborted")
	return Result{State: p.state, Err: cause, Metrics: m}
}

// frameIndexOf pulls the frame index out of a per-frame error, or -1.
func frameIndexOf(err error) int {
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return decErr.Frame
	}
	var infErr *InferenceError
	if errors.As(err, &infErr) {
		return infErr.Frame
	}
	return -1
}

// closeQuietly closes a stage on the way out. Close errors are logged,
// never re-raised: the run's outcome is already decided by then.
func closeQuietly(close func() error, stage string) {
	if err := close(); err != nil {
		logger.WithComponent("pipeline").Warn().Err(err).Str("stage", stage).Msg("close failed")
	}
}
