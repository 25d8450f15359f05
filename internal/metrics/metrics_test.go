package metrics

import (
	"testing"
	"time"
)

func TestAggregatorTotals(t *testing.T) {
	a := NewAggregator()
	a.Record(0, 2, 10*time.Millisecond)
	a.Record(1, 0, 20*time.Millisecond)
	a.Record(2, 5, 30*time.Millisecond)
	a.RecordSkipped(3, StageSource)
	a.RecordSkipped(4, StageDetector)

	m := a.Finalize()

	if m.TotalFrames != 5 {
		t.Errorf("TotalFrames = %d, want 5 (records + skipped)", m.TotalFrames)
	}
	if m.FramesProcessed != 3 || m.FramesSkipped != 2 {
		t.Errorf("processed/skipped = %d/%d, want 3/2", m.FramesProcessed, m.FramesSkipped)
	}
	if m.TotalDetections != 7 {
		t.Errorf("TotalDetections = %d, want 7", m.TotalDetections)
	}
	if got := m.AvgDetectionsPerFrame; got < 2.33 || got > 2.34 {
		t.Errorf("AvgDetectionsPerFrame = %v, want ~2.333", got)
	}
	if m.SkippedByStage[StageSource] != 1 || m.SkippedByStage[StageDetector] != 1 {
		t.Errorf("SkippedByStage = %v", m.SkippedByStage)
	}
}

func TestAggregatorLatencyStats(t *testing.T) {
	a := NewAggregator()
	a.Record(0, 0, 10*time.Millisecond)
	a.Record(1, 0, 30*time.Millisecond)
	a.Record(2, 0, 20*time.Millisecond)

	m := a.Finalize()

	if m.Inference.Count != 3 {
		t.Errorf("Count = %d, want 3", m.Inference.Count)
	}
	if m.Inference.MinMS != 10 || m.Inference.MaxMS != 30 {
		t.Errorf("min/max = %v/%v, want 10/30", m.Inference.MinMS, m.Inference.MaxMS)
	}
	if m.Inference.AvgMS != 20 {
		t.Errorf("AvgMS = %v, want 20", m.Inference.AvgMS)
	}
	if m.Inference.TotalMS != 60 {
		t.Errorf("TotalMS = %v, want 60", m.Inference.TotalMS)
	}
}

func TestAggregatorHistogram(t *testing.T) {
	a := NewAggregator()
	counts := []int{0, 0, 1, 2, 3, 5, 6, 10, 11, 40}
	for i, c := range counts {
		a.Record(i, c, time.Millisecond)
	}

	m := a.Finalize()

	want := map[string]int{"0": 2, "1-2": 2, "3-5": 2, "6-10": 2, "11+": 2}
	for _, b := range m.DetectionHistogram {
		if b.Frames != want[b.Label] {
			t.Errorf("bucket %q = %d, want %d", b.Label, b.Frames, want[b.Label])
		}
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	a := NewAggregator()
	a.Record(0, 1, time.Millisecond)

	first := a.Finalize()
	second := a.Finalize()

	if first != second {
		t.Error("Finalize returned different snapshots on repeated calls")
	}
}

func TestEmptyRun(t *testing.T) {
	a := NewAggregator()
	m := a.Finalize()

	if m.TotalFrames != 0 || m.AvgDetectionsPerFrame != 0 {
		t.Errorf("empty run produced frames=%d avg=%v", m.TotalFrames, m.AvgDetectionsPerFrame)
	}
	if m.Inference.Count != 0 || m.Inference.MinMS != 0 {
		t.Errorf("empty run produced latency stats %+v", m.Inference)
	}
}
