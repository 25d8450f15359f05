// Package config defines the run configuration and loads it from file,
// environment and flags via viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DetectorConfig configures the detection model for a run.
type DetectorConfig struct {
	// Model is the path to the frozen weights file.
	Model string `mapstructure:"model" yaml:"model"`

	// ModelConfig is the path to the network description accompanying
	// the weights.
	ModelConfig string `mapstructure:"model_config" yaml:"model_config"`

	// ConfThreshold is the minimum detection score to keep, in [0,1].
	ConfThreshold float64 `mapstructure:"conf_threshold" yaml:"conf_threshold"`

	// InferenceSize is the square network input resolution. Zero
	// derives it from the source video.
	InferenceSize int `mapstructure:"inference_size" yaml:"inference_size"`

	// Device selects the compute backend: auto, cpu, cuda:N or mps.
	Device string `mapstructure:"device" yaml:"device"`

	// PersonClassID is the "person" class id in the model's label map.
	PersonClassID int `mapstructure:"person_class_id" yaml:"person_class_id"`

	// MinBoxSize drops detections smaller than this many pixels on
	// either side. Zero keeps everything.
	MinBoxSize int `mapstructure:"min_box_size" yaml:"min_box_size"`

	// ClampBoxes clips out-of-bounds boxes to the frame instead of
	// dropping them.
	ClampBoxes bool `mapstructure:"clamp_boxes" yaml:"clamp_boxes"`
}

// PipelineConfig configures the per-run processing loop.
type PipelineConfig struct {
	// FrameErrorPolicy decides whether a frame that fails to decode or
	// infer is skipped or aborts the run: "skip" (default) or "abort".
	FrameErrorPolicy string `mapstructure:"frame_error_policy" yaml:"frame_error_policy"`

	// ProgressInterval logs progress every N processed frames. Zero
	// disables it.
	ProgressInterval int `mapstructure:"progress_interval" yaml:"progress_interval"`
}

// OutputConfig configures where results land.
type OutputConfig struct {
	// Dir receives annotated videos and reports. Empty writes next to
	// each input.
	Dir string `mapstructure:"dir" yaml:"dir"`

	// ReportFormat is json, yaml or csv.
	ReportFormat string `mapstructure:"report_format" yaml:"report_format"`
}

// PreviewConfig configures the optional live MJPEG preview.
type PreviewConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// HistoryConfig configures run-history persistence.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Config is the full application configuration. Immutable for the
// duration of a run.
type Config struct {
	Detector DetectorConfig `mapstructure:"detector" yaml:"detector"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Preview  PreviewConfig  `mapstructure:"preview" yaml:"preview"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty" yaml:"log_pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("detector.model", "models/ssd_mobilenet_v1.pb")
	v.SetDefault("detector.model_config", "models/ssd_mobilenet_v1.pbtxt")
	v.SetDefault("detector.conf_threshold", 0.25)
	v.SetDefault("detector.inference_size", 0)
	v.SetDefault("detector.device", "auto")
	v.SetDefault("detector.person_class_id", 1)
	v.SetDefault("detector.min_box_size", 0)
	v.SetDefault("detector.clamp_boxes", true)
	v.SetDefault("pipeline.frame_error_policy", "skip")
	v.SetDefault("pipeline.progress_interval", 100)
	v.SetDefault("output.dir", "")
	v.SetDefault("output.report_format", "json")
	v.SetDefault("preview.enabled", false)
	v.SetDefault("preview.addr", "localhost:8090")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "crowdmark.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", true)
}

// Load reads configuration from an optional YAML file, CROWDMARK_*
// environment variables and any flags already bound to viper, in
// ascending precedence.
func Load(cfgFile string) (*Config, error) {
	v := viper.GetViper()
	setDefaults(v)

	v.SetEnvPrefix("CROWDMARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("crowdmark")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that viper cannot.
func (c *Config) Validate() error {
	if c.Detector.ConfThreshold < 0 || c.Detector.ConfThreshold > 1 {
		return fmt.Errorf("detector.conf_threshold %v outside [0,1]", c.Detector.ConfThreshold)
	}
	if c.Detector.InferenceSize < 0 {
		return fmt.Errorf("detector.inference_size %d must not be negative", c.Detector.InferenceSize)
	}
	if c.Detector.Model == "" {
		return fmt.Errorf("detector.model must not be empty")
	}
	switch c.Pipeline.FrameErrorPolicy {
	case "skip", "abort":
	default:
		return fmt.Errorf("pipeline.frame_error_policy %q must be \"skip\" or \"abort\"", c.Pipeline.FrameErrorPolicy)
	}
	switch strings.ToLower(c.Output.ReportFormat) {
	case "json", "yaml", "csv":
	default:
		return fmt.Errorf("output.report_format %q must be json, yaml or csv", c.Output.ReportFormat)
	}
	return nil
}
