package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crowdmark/crowdmark/internal/config"
	"github.com/crowdmark/crowdmark/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past processing runs",
	Long:  `List runs recorded in the local history database, newest first.`,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tINPUT\tSTATE\tFRAMES\tDETECTIONS\tAVG/FRAME\tDURATION")
	for _, r := range runs {
		state := r.State
		if r.ErrorKind != "" {
			state = fmt.Sprintf("%s (%s)", r.State, r.ErrorKind)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f\t%.1fs\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.InputPath, state, r.TotalFrames, r.TotalDetections,
			r.AvgDetections, r.DurationSeconds)
	}
	return w.Flush()
}
