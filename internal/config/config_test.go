package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Detector: DetectorConfig{
			Model:         "models/net.pb",
			ConfThreshold: 0.25,
			Device:        "auto",
		},
		Pipeline: PipelineConfig{FrameErrorPolicy: "skip"},
		Output:   OutputConfig{ReportFormat: "json"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"abort policy is valid", func(c *Config) { c.Pipeline.FrameErrorPolicy = "abort" }, ""},
		{"yaml report is valid", func(c *Config) { c.Output.ReportFormat = "yaml" }, ""},
		{"threshold too high", func(c *Config) { c.Detector.ConfThreshold = 1.01 }, "conf_threshold"},
		{"threshold negative", func(c *Config) { c.Detector.ConfThreshold = -0.5 }, "conf_threshold"},
		{"negative inference size", func(c *Config) { c.Detector.InferenceSize = -64 }, "inference_size"},
		{"empty model", func(c *Config) { c.Detector.Model = "" }, "model"},
		{"bad policy", func(c *Config) { c.Pipeline.FrameErrorPolicy = "retry" }, "frame_error_policy"},
		{"bad report format", func(c *Config) { c.Output.ReportFormat = "xml" }, "report_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
