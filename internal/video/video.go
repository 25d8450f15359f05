// Package video adapts OpenCV video decoding and encoding to the
// pipeline's FrameSource and FrameSink contracts.
package video

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/crowdmark/crowdmark/internal/pipeline"
)

// Extensions recognized as video files in directory mode.
var videoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".avi": true,
	".mkv": true,
}

// IsVideoFile reports whether the path carries a recognized video
// extension.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// ListVideos returns the video files directly inside dir, sorted by
// name.
func ListVideos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var videos []string
	for _, entry := range entries {
		if entry.IsDir() || !IsVideoFile(entry.Name()) {
			continue
		}
		videos = append(videos, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(videos)
	return videos, nil
}

// OutputName derives the annotated output path for an input video:
// the input's stem with an "_annotated.mp4" suffix, placed in outDir
// (or next to the input when outDir is empty).
func OutputName(inputPath, outDir string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if outDir == "" {
		outDir = filepath.Dir(inputPath)
	}
	return filepath.Join(outDir, stem+"_annotated.mp4")
}

// Probe opens a video just long enough to read its metadata.
func Probe(path string) (pipeline.SourceMetadata, error) {
	capture, err := OpenCapture(path)
	if err != nil {
		return pipeline.SourceMetadata{}, err
	}
	defer capture.Close()
	return capture.Metadata(), nil
}
