package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/crowdmark/crowdmark/internal/metrics"
)

func testRun(id string, started time.Time) *metrics.RunMetrics {
	return &metrics.RunMetrics{
		RunID:                 id,
		InputPath:             "clip.mp4",
		OutputPath:            "clip_annotated.mp4",
		State:                 "completed",
		TotalFrames:           50,
		FramesProcessed:       50,
		TotalDetections:       120,
		AvgDetectionsPerFrame: 2.4,
		DurationSeconds:       3.1,
		StartedAt:             started,
	}
}

func TestSaveAndListRuns(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := store.SaveRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	// Newest first.
	if runs[0].RunID != "run-c" || runs[2].RunID != "run-a" {
		t.Errorf("order = %s, %s, %s", runs[0].RunID, runs[1].RunID, runs[2].RunID)
	}
	if runs[0].TotalDetections != 120 || runs[0].State != "completed" {
		t.Errorf("row content lost: %+v", runs[0])
	}
}

func TestListRunsLimit(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		run := testRun(string(rune('a'+i)), time.Now().Add(time.Duration(i)*time.Second))
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("got %d runs, want 2", len(runs))
	}
}

func TestOpenIsIdempotentOnSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	first, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.SaveRun(context.Background(), testRun("run-a", time.Now())); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	runs, err := second.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("reopened store lost data: %d runs", len(runs))
	}
}
