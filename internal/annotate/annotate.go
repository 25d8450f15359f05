// Package annotate draws detection boxes and labels onto frames.
//
// Drawing is pure Go and fully deterministic: identical inputs produce
// byte-identical output frames. The input frame is never mutated.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/crowdmark/crowdmark/internal/pipeline"
)

// Options configures box and label rendering.
type Options struct {
	BoxColor   color.RGBA
	LabelColor color.RGBA // label background
	TextColor  color.RGBA
	DrawLabels bool
}

// DefaultOptions returns the stock green-box style.
func DefaultOptions() Options {
	return Options{
		BoxColor:   color.RGBA{R: 46, G: 204, B: 113, A: 255},
		LabelColor: color.RGBA{R: 46, G: 204, B: 113, A: 255},
		TextColor:  color.RGBA{R: 20, G: 20, B: 20, A: 255},
		DrawLabels: true,
	}
}

// drawScale holds per-detection rendering sizes. Sizes are stepped by
// box-size buckets so thickness does not jitter from frame to frame as
// a box grows or shrinks slightly.
type drawScale struct {
	boxThickness int
	padding      int
}

func scaleForBox(d pipeline.Detection) drawScale {
	ref := d.Width()
	if d.Height() < ref {
		ref = d.Height()
	}
	switch {
	case ref < 60:
		return drawScale{boxThickness: 1, padding: 2}
	case ref < 150:
		return drawScale{boxThickness: 2, padding: 4}
	default:
		return drawScale{boxThickness: 3, padding: 6}
	}
}

// Annotator renders detections onto frames.
type Annotator struct {
	opts Options
	face font.Face
}

// New creates an Annotator with the given options.
func New(opts Options) *Annotator {
	return &Annotator{
		opts: opts,
		face: basicfont.Face7x13,
	}
}

var _ pipeline.Annotator = (*Annotator)(nil)

// Draw returns a new frame with every detection outlined and, if
// enabled, labeled. The output frame has the same dimensions, index and
// timestamp as the input. Boxes reaching outside the frame are clipped
// at the frame edge; label anchors are clamped so labels stay inside
// the frame.
func (a *Annotator) Draw(frame *pipeline.Frame, dets []pipeline.Detection) *pipeline.Frame {
	out := cloneRGBA(frame.Image)
	annotated := &pipeline.Frame{
		Index: frame.Index,
		PTS:   frame.PTS,
		Image: out,
	}

	for _, d := range dets {
		scale := scaleForBox(d)
		rect := d.Rect()
		a.drawBox(out, rect, scale.boxThickness)
		if a.opts.DrawLabels {
			label := fmt.Sprintf("%s %.2f", d.Label, d.Score)
			a.drawLabel(out, rect, label, scale)
		}
	}
	return annotated
}

// drawBox draws a rectangle outline of the given thickness, clipped to
// the image bounds.
func (a *Annotator) drawBox(img *image.RGBA, rect image.Rectangle, thickness int) {
	top := image.Rect(rect.Min.X-thickness, rect.Min.Y-thickness, rect.Max.X+thickness, rect.Min.Y)
	bottom := image.Rect(rect.Min.X-thickness, rect.Max.Y, rect.Max.X+thickness, rect.Max.Y+thickness)
	left := image.Rect(rect.Min.X-thickness, rect.Min.Y, rect.Min.X, rect.Max.Y)
	right := image.Rect(rect.Max.X, rect.Min.Y, rect.Max.X+thickness, rect.Max.Y)

	for _, edge := range []image.Rectangle{top, bottom, left, right} {
		fillRect(img, edge.Intersect(img.Bounds()), a.opts.BoxColor)
	}
}

// drawLabel renders a filled label box anchored above the detection's
// top-left corner, pushed down inside the frame when there is no room
// above.
func (a *Annotator) drawLabel(img *image.RGBA, rect image.Rectangle, text string, scale drawScale) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(a.opts.TextColor),
		Face: a.face,
	}
	textWidth := d.MeasureString(text).Ceil()
	fm := a.face.Metrics()
	textHeight := fm.Ascent.Ceil() + fm.Descent.Ceil()

	boxW := textWidth + 2*scale.padding
	boxH := textHeight + 2*scale.padding

	// Anchor above the box, clamped into the frame on both axes.
	x := clamp(rect.Min.X, 0, img.Bounds().Dx()-boxW)
	y := rect.Min.Y - boxH
	y = clamp(y, 0, img.Bounds().Dy()-boxH)

	labelRect := image.Rect(x, y, x+boxW, y+boxH)
	fillRect(img, labelRect.Intersect(img.Bounds()), a.opts.LabelColor)

	d.Dot = fixed.P(x+scale.padding, y+scale.padding+fm.Ascent.Ceil())
	d.DrawString(text)
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}

func fillRect(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
