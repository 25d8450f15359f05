package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crowdmark/crowdmark/internal/annotate"
	"github.com/crowdmark/crowdmark/internal/config"
	"github.com/crowdmark/crowdmark/internal/detect"
	"github.com/crowdmark/crowdmark/internal/history"
	"github.com/crowdmark/crowdmark/internal/logger"
	"github.com/crowdmark/crowdmark/internal/metrics"
	"github.com/crowdmark/crowdmark/internal/pipeline"
	"github.com/crowdmark/crowdmark/internal/preview"
	"github.com/crowdmark/crowdmark/internal/report"
	"github.com/crowdmark/crowdmark/internal/video"
)

var processCmd = &cobra.Command{
	Use:   "process <input>",
	Short: "Detect people in a video and write an annotated copy",
	Long: `Process a video file, or every video in a directory, through the
detection pipeline. Each input produces an annotated video plus a metrics
report; finished runs are also recorded in the local run history.`,
	Example: `  # Annotate one video with defaults
  crowdmark process clip.mp4

  # Custom model, threshold and output directory
  crowdmark process clip.mp4 --model models/net.pb --conf 0.4 --output out/

  # Every video in a folder, aborting on the first bad frame
  crowdmark process footage/ --policy abort

  # Watch the annotated frames live while processing
  crowdmark process clip.mp4 --preview`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringP("output", "o", "", "output directory (default: next to each input)")
	processCmd.Flags().String("model", "", "model weights path")
	processCmd.Flags().String("model-config", "", "model network description path")
	processCmd.Flags().Float64("conf", 0, "confidence threshold in [0,1]")
	processCmd.Flags().Int("inference-size", 0, "square network input size (0 = derive from source)")
	processCmd.Flags().String("device", "", "compute device: auto, cpu, cuda:N or mps")
	processCmd.Flags().String("policy", "", "frame error policy: skip or abort")
	processCmd.Flags().String("report-format", "", "metrics report format: json, yaml or csv")
	processCmd.Flags().Int("min-box-size", 0, "drop boxes smaller than this many pixels per side")
	processCmd.Flags().Bool("preview", false, "serve a live MJPEG preview while processing")
	processCmd.Flags().String("preview-addr", "", "preview listen address")
	processCmd.Flags().Bool("no-history", false, "do not record this run in the history database")
	processCmd.Flags().Bool("no-labels", false, "draw boxes without text labels")

	viper.BindPFlag("output.dir", processCmd.Flags().Lookup("output"))
	viper.BindPFlag("detector.model", processCmd.Flags().Lookup("model"))
	viper.BindPFlag("detector.model_config", processCmd.Flags().Lookup("model-config"))
	viper.BindPFlag("detector.conf_threshold", processCmd.Flags().Lookup("conf"))
	viper.BindPFlag("detector.inference_size", processCmd.Flags().Lookup("inference-size"))
	viper.BindPFlag("detector.device", processCmd.Flags().Lookup("device"))
	viper.BindPFlag("detector.min_box_size", processCmd.Flags().Lookup("min-box-size"))
	viper.BindPFlag("pipeline.frame_error_policy", processCmd.Flags().Lookup("policy"))
	viper.BindPFlag("output.report_format", processCmd.Flags().Lookup("report-format"))
	viper.BindPFlag("preview.enabled", processCmd.Flags().Lookup("preview"))
	viper.BindPFlag("preview.addr", processCmd.Flags().Lookup("preview-addr"))
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	log := logger.WithComponent("process")

	policy, err := pipeline.ParsePolicy(cfg.Pipeline.FrameErrorPolicy)
	if err != nil {
		return err
	}
	reportFormat, err := report.ParseFormat(cfg.Output.ReportFormat)
	if err != nil {
		return err
	}

	inputs, batch, err := resolveInputs(args[0])
	if err != nil {
		return err
	}

	// One loaded model serves the whole batch; its forward pass is
	// serialized internally.
	detector, err := detect.Load(detect.Config{
		ModelPath:       cfg.Detector.Model,
		ModelConfigPath: cfg.Detector.ModelConfig,
		ConfThreshold:   cfg.Detector.ConfThreshold,
		InferenceSize:   cfg.Detector.InferenceSize,
		Device:          cfg.Detector.Device,
		PersonClassID:   cfg.Detector.PersonClassID,
		Filter: detect.PostFilter{
			MinBoxSize: cfg.Detector.MinBoxSize,
			ClampBoxes: cfg.Detector.ClampBoxes,
		},
	})
	if err != nil {
		return err
	}
	defer detector.Close()

	opts := annotate.DefaultOptions()
	if noLabels, _ := cmd.Flags().GetBool("no-labels"); noLabels {
		opts.DrawLabels = false
	}
	annotator := annotate.New(opts)

	var store *history.Store
	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	var previewSrv *preview.Server
	if cfg.Preview.Enabled {
		previewSrv = preview.NewServer(cfg.Preview.Addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		runs     []*metrics.RunMetrics
		firstErr error
	)
	for _, input := range inputs {
		outputPath := video.OutputName(input, cfg.Output.Dir)
		log.Info().Str("input", input).Str("output", outputPath).Msg("processing video")

		if previewSrv != nil {
			if err := previewSrv.Start(input); err != nil {
				return err
			}
		}

		p := &pipeline.Pipeline{
			OpenSource: func() (pipeline.FrameSource, error) {
				return video.OpenCapture(input)
			},
			OpenSink: func(meta pipeline.SourceMetadata) (pipeline.FrameSink, error) {
				return video.OpenWriter(outputPath, meta.Width, meta.Height, meta.FPS)
			},
			Detector:      detector,
			Annotator:     annotator,
			Policy:        policy,
			ProgressEvery: cfg.Pipeline.ProgressInterval,
		}
		if previewSrv != nil {
			p.OnAnnotated = previewSrv.PublishFrame
		}

		result := p.Run(ctx)

		m := result.Metrics
		m.RunID = uuid.NewString()
		m.InputPath = input
		m.OutputPath = outputPath
		m.Model = cfg.Detector.Model
		m.ConfThreshold = cfg.Detector.ConfThreshold
		m.InferenceSize = cfg.Detector.InferenceSize
		m.Device = detector.DeviceName()
		runs = append(runs, m)

		if previewSrv != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			previewSrv.Stop(stopCtx)
			cancel()
		}

		reportPath := report.DefaultPath(outputPath, reportFormat)
		if err := report.Write(reportPath, m, reportFormat); err != nil {
			log.Error().Err(err).Str("path", reportPath).Msg("failed to write metrics report")
		} else {
			log.Info().Str("path", reportPath).Msg("metrics report written")
		}

		if store != nil {
			if err := store.SaveRun(context.Background(), m); err != nil {
				log.Error().Err(err).Msg("failed to record run history")
			}
		}

		if result.State == pipeline.StateAborted {
			if firstErr == nil {
				firstErr = result.Err
			}
			if !batch || ctx.Err() != nil {
				break
			}
			// Directory mode keeps going; the summary and exit code
			// still report the failure.
			log.Warn().Str("input", input).Msg("continuing with remaining videos")
		}
	}

	if batch && len(runs) > 0 {
		summaryDir := cfg.Output.Dir
		if summaryDir == "" {
			summaryDir = args[0]
		}
		summaryPath := filepath.Join(summaryDir, "summary.csv")
		if err := report.WriteCSV(summaryPath, runs); err != nil {
			log.Error().Err(err).Msg("failed to write batch summary")
		} else {
			log.Info().Str("path", summaryPath).Msg("batch summary written")
		}
	}

	if firstErr != nil {
		return fmt.Errorf("processing failed: %w", firstErr)
	}
	return nil
}

// resolveInputs expands a path argument into the list of videos to
// process and reports whether it was a directory.
func resolveInputs(path string) ([]string, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, &pipeline.SourceOpenError{Path: path, Err: err}
	}
	if !info.IsDir() {
		return []string{path}, false, nil
	}
	videos, err := video.ListVideos(path)
	if err != nil {
		return nil, false, &pipeline.SourceOpenError{Path: path, Err: err}
	}
	if len(videos) == 0 {
		return nil, false, fmt.Errorf("no video files found in %s", path)
	}
	return videos, true, nil
}
