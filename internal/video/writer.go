package video

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/crowdmark/crowdmark/internal/pipeline"
)

// fourCC is the codec tag for output containers. mp4v keeps the output
// playable everywhere without requiring a specially built encoder.
const fourCC = "mp4v"

// Writer is a FrameSink backed by an OpenCV VideoWriter. Frames must
// arrive in increasing ordinal order with dimensions matching the
// values the writer was opened with.
type Writer struct {
	path   string
	vw     *gocv.VideoWriter
	width  int
	height int
	closed bool
}

var _ pipeline.FrameSink = (*Writer)(nil)

// OpenWriter creates the destination video. Missing parent directories
// are created. Failures are reported as *pipeline.SinkOpenError.
func OpenWriter(path string, width, height int, fps float64) (*Writer, error) {
	if width <= 0 || height <= 0 {
		return nil, &pipeline.SinkOpenError{
			Path: path,
			Err:  fmt.Errorf("invalid dimensions %dx%d", width, height),
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &pipeline.SinkOpenError{Path: path, Err: err}
	}
	if fps <= 0 {
		fps = 30
	}

	vw, err := gocv.VideoWriterFile(path, fourCC, fps, width, height, true)
	if err != nil {
		return nil, &pipeline.SinkOpenError{Path: path, Err: err}
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, &pipeline.SinkOpenError{Path: path, Err: errors.New("encoder rejected the output parameters")}
	}

	return &Writer{path: path, vw: vw, width: width, height: height}, nil
}

// Write encodes one frame. A dimension mismatch is a contract violation
// and fails without retry; all failures are *pipeline.EncodeError.
func (w *Writer) Write(frame *pipeline.Frame) error {
	if w.closed {
		return &pipeline.EncodeError{Frame: frame.Index, Err: errors.New("sink is closed")}
	}
	if frame.Width() != w.width || frame.Height() != w.height {
		return &pipeline.EncodeError{
			Frame: frame.Index,
			Err: fmt.Errorf("frame is %dx%d, sink was opened for %dx%d",
				frame.Width(), frame.Height(), w.width, w.height),
		}
	}

	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return &pipeline.EncodeError{Frame: frame.Index, Err: err}
	}
	defer mat.Close()

	// The encoder wants BGR.
	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBToBGR)

	if err := w.vw.Write(bgr); err != nil {
		return &pipeline.EncodeError{Frame: frame.Index, Err: err}
	}
	return nil
}

// Close flushes the encoder and finalizes the container. Safe to call
// more than once.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.vw.Close()
}
