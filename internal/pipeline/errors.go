package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Error kind names surfaced in reports and exit messages.
const (
	KindSourceOpen = "SourceOpenError"
	KindSinkOpen   = "SinkOpenError"
	KindModelLoad  = "ModelLoadError"
	KindDecode     = "DecodeError"
	KindInference  = "InferenceError"
	KindEncode     = "EncodeError"
	KindCanceled   = "Canceled"
)

// SourceOpenError reports a video source that could not be opened:
// missing file, unreadable path, or an unsupported container/codec.
type SourceOpenError struct {
	Path string
	Err  error
}

func (e *SourceOpenError) Error() string {
	return fmt.Sprintf("open video source %q: %v", e.Path, e.Err)
}

func (e *SourceOpenError) Unwrap() error { return e.Err }

// SinkOpenError reports a video destination that could not be opened:
// unwritable path or unsupported codec for the requested parameters.
type SinkOpenError struct {
	Path string
	Err  error
}

func (e *SinkOpenError) Error() string {
	return fmt.Sprintf("open video sink %q: %v", e.Path, e.Err)
}

func (e *SinkOpenError) Unwrap() error { return e.Err }

// ModelLoadError reports detection model weights that could not be
// loaded: missing file, unsupported device, or incompatible format.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %q: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// DecodeError reports a single frame that failed to decode mid-stream.
// The frame-error policy decides whether the run skips it or aborts.
type DecodeError struct {
	Frame int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame %d: %v", e.Frame, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// InferenceError reports a single frame whose inference failed. It does
// not invalidate the detector for subsequent frames.
type InferenceError struct {
	Frame int
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference on frame %d: %v", e.Frame, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// EncodeError reports a frame the sink could not accept. Always fatal:
// once a write fails, output stream integrity cannot be guaranteed.
type EncodeError struct {
	Frame int
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode frame %d: %v", e.Frame, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// ErrorKind maps an error to its short kind name, or "" for nil and
// unclassified errors.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var (
		srcErr *SourceOpenError
		snkErr *SinkOpenError
		mdlErr *ModelLoadError
		decErr *DecodeError
		infErr *InferenceError
		encErr *EncodeError
	)
	switch {
	case errors.As(err, &srcErr):
		return KindSourceOpen
	case errors.As(err, &snkErr):
		return KindSinkOpen
	case errors.As(err, &mdlErr):
		return KindModelLoad
	case errors.As(err, &decErr):
		return KindDecode
	case errors.As(err, &infErr):
		return KindInference
	case errors.As(err, &encErr):
		return KindEncode
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return "Error"
}
