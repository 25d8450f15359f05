package video

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"time"

	"gocv.io/x/gocv"

	"github.com/crowdmark/crowdmark/internal/pipeline"
)

// Capture is a FrameSource backed by an OpenCV VideoCapture handle. It
// decodes frames one at a time into a reused buffer, so memory stays
// constant regardless of video length.
type Capture struct {
	path   string
	vc     *gocv.VideoCapture
	meta   pipeline.SourceMetadata
	buf    gocv.Mat
	next   int
	closed bool
}

var _ pipeline.FrameSource = (*Capture)(nil)

// OpenCapture opens a video file for sequential decoding. Failures are
// reported as *pipeline.SourceOpenError.
func OpenCapture(path string) (*Capture, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &pipeline.SourceOpenError{Path: path, Err: err}
	}

	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, &pipeline.SourceOpenError{Path: path, Err: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &pipeline.SourceOpenError{Path: path, Err: errors.New("unsupported container or codec")}
	}

	width := int(vc.Get(gocv.VideoCaptureFrameWidth))
	height := int(vc.Get(gocv.VideoCaptureFrameHeight))
	if width <= 0 || height <= 0 {
		vc.Close()
		return nil, &pipeline.SourceOpenError{
			Path: path,
			Err:  fmt.Errorf("invalid dimensions %dx%d", width, height),
		}
	}

	meta := pipeline.SourceMetadata{
		Width:  width,
		Height: height,
		FPS:    vc.Get(gocv.VideoCaptureFPS),
	}
	// Some containers report no frame total; leave it absent rather
	// than claiming 0.
	if count := int(vc.Get(gocv.VideoCaptureFrameCount)); count > 0 {
		meta.FrameCount = &count
	}

	return &Capture{
		path: path,
		vc:   vc,
		meta: meta,
		buf:  gocv.NewMat(),
	}, nil
}

// Metadata reports the stream's dimensions and frame rate.
func (c *Capture) Metadata() pipeline.SourceMetadata {
	return c.meta
}

// Next decodes and returns the next frame. Returns io.EOF once the
// stream is exhausted and *pipeline.DecodeError for a frame that could
// not be decoded; the sequence position still advances past a bad
// frame.
func (c *Capture) Next() (*pipeline.Frame, error) {
	if c.closed {
		return nil, io.EOF
	}

	index := c.next
	if ok := c.vc.Read(&c.buf); !ok {
		return nil, io.EOF
	}
	c.next++

	if c.buf.Empty() {
		return nil, &pipeline.DecodeError{Frame: index, Err: errors.New("decoder returned an empty frame")}
	}

	img, err := c.buf.ToImage()
	if err != nil {
		return nil, &pipeline.DecodeError{Frame: index, Err: err}
	}

	return &pipeline.Frame{
		Index: index,
		PTS:   framePTS(index, c.meta.FPS),
		Image: toRGBA(img),
	}, nil
}

// Close releases the decoder handle. Safe to call more than once.
func (c *Capture) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.buf.Close()
	return c.vc.Close()
}

func framePTS(index int, fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(index) / fps * float64(time.Second))
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
