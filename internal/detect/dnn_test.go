package detect

import (
	"errors"
	"testing"

	"github.com/crowdmark/crowdmark/internal/pipeline"
)

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"threshold above one", Config{ModelPath: "x.pb", ConfThreshold: 1.5}},
		{"negative threshold", Config{ModelPath: "x.pb", ConfThreshold: -0.1}},
		{"negative inference size", Config{ModelPath: "x.pb", ConfThreshold: 0.5, InferenceSize: -1}},
		{"missing weights", Config{ModelPath: "definitely/not/here.pb", ConfThreshold: 0.5}},
		{"bad device", Config{ModelPath: "x.pb", ConfThreshold: 0.5, Device: "quantum"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.cfg)
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			var loadErr *pipeline.ModelLoadError
			if !errors.As(err, &loadErr) {
				t.Errorf("error type = %T, want *pipeline.ModelLoadError", err)
			}
		})
	}
}
