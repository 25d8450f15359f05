package detect

import (
	"testing"

	"github.com/crowdmark/crowdmark/internal/pipeline"
)

func TestPostFilterClampsToFrame(t *testing.T) {
	f := PostFilter{ClampBoxes: true}
	dets := []pipeline.Detection{
		{X1: -10, Y1: -5, X2: 50, Y2: 60, Score: 0.9, Label: "person"},
		{X1: 80, Y1: 40, X2: 200, Y2: 300, Score: 0.8, Label: "person"},
	}

	out := f.Apply(dets, 100, 100)

	if len(out) != 2 {
		t.Fatalf("kept %d detections, want 2", len(out))
	}
	for _, d := range out {
		if d.X1 < 0 || d.Y1 < 0 || d.X2 > 100 || d.Y2 > 100 {
			t.Errorf("detection not clamped: %+v", d)
		}
		if d.X1 >= d.X2 || d.Y1 >= d.Y2 {
			t.Errorf("degenerate detection survived: %+v", d)
		}
	}
}

func TestPostFilterRejectsWithoutClamp(t *testing.T) {
	f := PostFilter{ClampBoxes: false}
	dets := []pipeline.Detection{
		{X1: -10, Y1: 5, X2: 50, Y2: 60, Score: 0.9, Label: "person"},
		{X1: 10, Y1: 5, X2: 50, Y2: 60, Score: 0.8, Label: "person"},
	}

	out := f.Apply(dets, 100, 100)

	if len(out) != 1 || out[0].Score != 0.8 {
		t.Errorf("Apply kept %v, want only the in-bounds box", out)
	}
}

func TestPostFilterDropsDegenerate(t *testing.T) {
	f := PostFilter{ClampBoxes: true}
	dets := []pipeline.Detection{
		{X1: 50, Y1: 10, X2: 50, Y2: 60, Score: 0.9, Label: "person"},  // zero width
		{X1: 120, Y1: 110, X2: 180, Y2: 190, Score: 0.9, Label: "person"}, // fully outside, clamps to a line
	}

	if out := f.Apply(dets, 100, 100); len(out) != 0 {
		t.Errorf("Apply kept %v, want nothing", out)
	}
}

func TestPostFilterMinBoxSize(t *testing.T) {
	f := PostFilter{ClampBoxes: true, MinBoxSize: 20}
	dets := []pipeline.Detection{
		{X1: 0, Y1: 0, X2: 10, Y2: 50, Score: 0.9, Label: "person"}, // too narrow
		{X1: 0, Y1: 0, X2: 50, Y2: 10, Score: 0.9, Label: "person"}, // too short
		{X1: 0, Y1: 0, X2: 30, Y2: 30, Score: 0.9, Label: "person"},
	}

	out := f.Apply(dets, 100, 100)

	if len(out) != 1 || out[0].X2 != 30 {
		t.Errorf("Apply kept %v, want only the 30x30 box", out)
	}
}

func TestPostFilterStableOrder(t *testing.T) {
	f := PostFilter{ClampBoxes: true}
	dets := []pipeline.Detection{
		{X1: 50, Y1: 10, X2: 90, Y2: 60, Score: 0.7, Label: "person"},
		{X1: 10, Y1: 40, X2: 40, Y2: 80, Score: 0.9, Label: "person"},
		{X1: 10, Y1: 10, X2: 40, Y2: 60, Score: 0.8, Label: "person"},
	}

	out := f.Apply(dets, 100, 100)

	if out[0].Y1 != 10 || out[1].Y1 != 40 || out[2].X1 != 50 {
		t.Errorf("unexpected order: %v", out)
	}
}

func TestRoundToStride(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 32},
		{1, 32},
		{32, 32},
		{33, 64},
		{300, 320},
		{640, 640},
		{1080, 1088},
	}
	for _, tt := range tests {
		if got := roundToStride(tt.in); got != tt.want {
			t.Errorf("roundToStride(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
