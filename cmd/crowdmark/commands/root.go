package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crowdmark/crowdmark/internal/logger"
)

var (
	cfgFile  string
	logLevel string
	logPlain bool

	rootCmd = &cobra.Command{
		Use:   "crowdmark",
		Short: "crowdmark - person detection and annotation for video files",
		Long: `crowdmark processes video files frame-by-frame, locates people with a
pretrained detection model, draws bounding boxes on each frame, writes an
annotated video and aggregates per-run detection metrics.

Processing is single-pass with memory bounded to a handful of frames, so
arbitrarily long videos are fine.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional; ignore a missing file.
			godotenv.Load()
			logger.Init(logLevel, !logPlain)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./crowdmark.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logPlain, "log-plain", false, "structured JSON logs instead of console output")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path given on the command line.
func GetConfigFile() string {
	return cfgFile
}
