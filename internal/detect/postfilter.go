package detect

import "github.com/crowdmark/crowdmark/internal/pipeline"

// PostFilter cleans up raw model output before it leaves the detector:
// boxes are clamped to frame bounds, degenerate or undersized boxes are
// dropped, and the result is put into a stable order.
type PostFilter struct {
	// MinBoxSize drops boxes whose clamped width or height is below
	// this many pixels. Zero keeps everything.
	MinBoxSize int

	// ClampBoxes clips box coordinates to the frame rectangle. When
	// disabled, out-of-bounds boxes are dropped instead.
	ClampBoxes bool
}

// Apply filters dets in place against a frame of the given dimensions
// and returns the surviving detections in stable order.
func (f PostFilter) Apply(dets []pipeline.Detection, width, height int) []pipeline.Detection {
	w, h := float64(width), float64(height)
	kept := dets[:0]
	for _, d := range dets {
		if f.ClampBoxes {
			d.X1 = clampF(d.X1, 0, w)
			d.X2 = clampF(d.X2, 0, w)
			d.Y1 = clampF(d.Y1, 0, h)
			d.Y2 = clampF(d.Y2, 0, h)
		} else if d.X1 < 0 || d.Y1 < 0 || d.X2 > w || d.Y2 > h {
			continue
		}
		if d.X1 >= d.X2 || d.Y1 >= d.Y2 {
			continue
		}
		if f.MinBoxSize > 0 {
			min := float64(f.MinBoxSize)
			if d.Width() < min || d.Height() < min {
				continue
			}
		}
		kept = append(kept, d)
	}
	pipeline.SortDetections(kept)
	return kept
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
