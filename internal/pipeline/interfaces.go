package pipeline

// FrameSource produces a lazy, finite, forward-only sequence of frames
// from an opened video. Once a frame has been returned it cannot be
// re-requested; reopening the source is the only way to rewind.
type FrameSource interface {
	// Metadata reports the dimensions and frame rate of the stream.
	Metadata() SourceMetadata

	// Next returns the next frame, io.EOF at end of stream, or a
	// *DecodeError for a frame that failed to decode mid-stream.
	Next() (*Frame, error)

	// Close releases decoder resources. Safe to call more than once.
	Close() error
}

// Detector locates people in a single frame. Returned detections carry
// coordinates in the original frame's pixel space and scores at or
// above the configured confidence threshold. A *InferenceError from
// Detect does not invalidate the detector for subsequent frames.
type Detector interface {
	Detect(frame *Frame) ([]Detection, error)

	// Close releases model resources.
	Close() error
}

// Annotator draws detections onto a frame, returning a new frame of
// identical dimensions and ordinal index. The input frame is never
// mutated, and identical inputs yield byte-identical output.
type Annotator interface {
	Draw(frame *Frame, dets []Detection) *Frame
}

// FrameSink accepts frames in increasing ordinal order with no gaps and
// writes them to a destination video. Close finalizes the container and
// is safe to call more than once.
type FrameSink interface {
	// Write encodes one frame. Frame dimensions must exactly match the
	// values the sink was opened with. Failures are *EncodeError.
	Write(frame *Frame) error

	Close() error
}
