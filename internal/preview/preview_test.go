package preview

import (
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crowdmark/crowdmark/internal/pipeline"
)

func TestStatusTracksPublishedFrames(t *testing.T) {
	s := NewServer("localhost:0")
	s.status = Status{Input: "clip.mp4"}

	frame := &pipeline.Frame{Index: 4, Image: image.NewRGBA(image.Rect(0, 0, 8, 8))}
	dets := []pipeline.Detection{
		{X1: 1, Y1: 1, X2: 5, Y2: 5, Score: 0.9, Label: "person"},
		{X1: 2, Y1: 2, X2: 6, Y2: 6, Score: 0.7, Label: "person"},
	}
	s.PublishFrame(frame, dets)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var got Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Input != "clip.mp4" || got.FramesProcessed != 5 || got.TotalDetections != 2 {
		t.Errorf("status = %+v", got)
	}
}

func TestPublishFrameDropsForSlowClients(t *testing.T) {
	s := NewServer("localhost:0")

	// A full, unread client channel must not block the pipeline.
	ch := make(chan []byte, 2)
	s.clientsMu.Lock()
	s.clients[ch] = struct{}{}
	s.clientsMu.Unlock()

	frame := &pipeline.Frame{Image: image.NewRGBA(image.Rect(0, 0, 8, 8))}
	for i := 0; i < 10; i++ {
		frame.Index = i
		s.PublishFrame(frame, nil)
	}

	if len(ch) != 2 {
		t.Errorf("client buffered %d frames, want 2", len(ch))
	}
}
