package video

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsVideoFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"clip.mp4", true},
		{"CLIP.MP4", true},
		{"footage/walk.mov", true},
		{"walk.avi", true},
		{"walk.mkv", true},
		{"notes.txt", false},
		{"clip.mp4.json", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsVideoFile(tt.path); got != tt.want {
			t.Errorf("IsVideoFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		input  string
		outDir string
		want   string
	}{
		{"footage/walk.mp4", "", filepath.Join("footage", "walk_annotated.mp4")},
		{"footage/walk.mov", "out", filepath.Join("out", "walk_annotated.mp4")},
		{"walk.mkv", "", "walk_annotated.mp4"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.input, tt.outDir); got != tt.want {
			t.Errorf("OutputName(%q, %q) = %q, want %q", tt.input, tt.outDir, got, tt.want)
		}
	}
}

func TestListVideos(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mp4", "a.mov", "notes.txt", "c.mkv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.mp4"), 0o755); err != nil {
		t.Fatal(err)
	}

	videos, err := ListVideos(dir)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		filepath.Join(dir, "a.mov"),
		filepath.Join(dir, "b.mp4"),
		filepath.Join(dir, "c.mkv"),
	}
	if len(videos) != len(want) {
		t.Fatalf("ListVideos = %v, want %v", videos, want)
	}
	for i := range want {
		if videos[i] != want[i] {
			t.Errorf("videos[%d] = %q, want %q", i, videos[i], want[i])
		}
	}
}

func TestFramePTS(t *testing.T) {
	tests := []struct {
		index int
		fps   float64
		want  time.Duration
	}{
		{0, 30, 0},
		{30, 30, time.Second},
		{15, 30, 500 * time.Millisecond},
		{10, 0, 0}, // unknown rate
	}
	for _, tt := range tests {
		if got := framePTS(tt.index, tt.fps); got != tt.want {
			t.Errorf("framePTS(%d, %v) = %v, want %v", tt.index, tt.fps, got, tt.want)
		}
	}
}

func TestOpenCaptureMissingFile(t *testing.T) {
	_, err := OpenCapture(filepath.Join(t.TempDir(), "missing.mp4"))
	if err == nil {
		t.Fatal("OpenCapture succeeded on a missing file")
	}
}
