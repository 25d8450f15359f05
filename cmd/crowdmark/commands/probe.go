package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crowdmark/crowdmark/internal/video"
)

var probeFormat string

var probeCmd = &cobra.Command{
	Use:   "probe <video>",
	Short: "Print a video's dimensions, frame rate and frame count",
	Example: `  # Table output
  crowdmark probe clip.mp4

  # JSON output
  crowdmark probe clip.mp4 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringVarP(&probeFormat, "format", "f", "table", "output format (table or json)")
}

func runProbe(cmd *cobra.Command, args []string) error {
	meta, err := video.Probe(args[0])
	if err != nil {
		return err
	}

	if probeFormat == "json" {
		out := map[string]interface{}{
			"width":  meta.Width,
			"height": meta.Height,
			"fps":    meta.FPS,
		}
		if meta.FrameCount != nil {
			out["frame_count"] = *meta.FrameCount
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "WIDTH\tHEIGHT\tFPS\tFRAMES\n")
	frames := "unknown"
	if meta.FrameCount != nil {
		frames = fmt.Sprintf("%d", *meta.FrameCount)
	}
	fmt.Fprintf(w, "%d\t%d\t%.2f\t%s\n", meta.Width, meta.Height, meta.FPS, frames)
	return w.Flush()
}
