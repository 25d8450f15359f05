package pipeline

import (
	"image"
	"sort"
	"time"
)

// Frame is one decoded raster image from a video, in sequence order.
// Frames are immutable once produced: stages that transform a frame
// return a new one and never touch the original pixel buffer. Ownership
// moves forward through the pipeline; no stage holds a frame after
// passing it on.
type Frame struct {
	// Index is the ordinal position of the frame within its source,
	// starting at 0.
	Index int

	// PTS is the presentation timestamp relative to the start of the
	// stream.
	PTS time.Duration

	// Image holds the pixel data in RGBA order, row-major.
	Image *image.RGBA
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int {
	return f.Image.Bounds().Dx()
}

// Height returns the frame height in pixels.
func (f *Frame) Height() int {
	return f.Image.Bounds().Dy()
}

// Detection is one predicted bounding box for the "person" class.
// Coordinates are always expressed in the source frame's pixel space,
// regardless of the resolution the model ran at.
type Detection struct {
	X1, Y1 float64 // top-left corner
	X2, Y2 float64 // bottom-right corner
	Score  float64 // confidence in [0,1]
	Label  string
}

// Rect returns the detection box as an integer pixel rectangle.
func (d Detection) Rect() image.Rectangle {
	return image.Rect(int(d.X1), int(d.Y1), int(d.X2), int(d.Y2))
}

// Width returns the box width in pixels.
func (d Detection) Width() float64 {
	return d.X2 - d.X1
}

// Height returns the box height in pixels.
func (d Detection) Height() float64 {
	return d.Y2 - d.Y1
}

// SortDetections orders detections by position, then by descending
// score. Detection order carries no meaning, but a stable order keeps
// drawing and reports deterministic.
func SortDetections(dets []Detection) {
	sort.Slice(dets, func(i, j int) bool {
		if dets[i].X1 != dets[j].X1 {
			return dets[i].X1 < dets[j].X1
		}
		if dets[i].Y1 != dets[j].Y1 {
			return dets[i].Y1 < dets[j].Y1
		}
		return dets[i].Score > dets[j].Score
	})
}

// SourceMetadata describes an opened video stream.
type SourceMetadata struct {
	Width  int
	Height int
	FPS    float64

	// FrameCount is nil when the container does not report a frame
	// total (unseekable streams). It is never reported as 0.
	FrameCount *int
}
