package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/event-scout/internal/model"
	"github.com/sells-group/event-scout/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect discovery run history",
	Long:  "Commands for listing, viewing, and summarizing discovery runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovery runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
			Offset: offset,
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		stats := computeRunStats(runs)
		formatRunStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total        int
	Complete     int
	Failed       int
	InFlight     int
	Accepted     int
	BestEffort   int // retry verdict: cycles ran out below the quality bar
	AvgDurSecs   float64
	TotalCostUSD float64
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.Run) runStats {
	var s runStats
	s.Total = len(runs)

	var totalDur time.Duration
	var durCount int

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
			totalDur += r.UpdatedAt.Sub(r.CreatedAt)
			durCount++
			if r.Result != nil {
				switch r.Result.Verdict {
				case model.VerdictAccept:
					s.Accepted++
				case model.VerdictRetry:
					s.BestEffort++
				}
			}
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.InFlight++
		}
		if r.Result != nil {
			s.TotalCostUSD += r.Result.TotalCost
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tQUERY\tSTATUS\tVERDICT\tEVENTS\tCOST\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t-------\t------\t----\t-------")

	for _, r := range runs {
		verdict := ""
		events := "-"
		cost := "-"
		if r.Result != nil {
			verdict = string(r.Result.Verdict)
			events = fmt.Sprintf("%d", len(r.Result.Events))
			cost = fmt.Sprintf("$%.4f", r.Result.TotalCost)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			truncate(r.Request.Query, 36),
			r.Status,
			verdict,
			events,
			cost,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "  Accepted:\t%d\n", s.Accepted)
	_, _ = fmt.Fprintf(w, "  Best effort:\t%d\n", s.BestEffort)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "In flight:\t%d\n", s.InFlight)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_, _ = fmt.Fprintf(w, "Total spend:\t$%.4f\n", s.TotalCostUSD)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
