package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/model"
)

var (
	discoverQuery     string
	discoverLocation  string
	discoverTimeFrame string
	discoverInterests []string
	discoverProfile   string
	discoverJSON      bool
	discoverPublish   bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run event discovery for a single query",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "discover")
		if err != nil {
			return err
		}
		defer env.Close()

		if discoverPublish && (env.notion == nil || cfg.Notion.EventsDB == "") {
			return eris.New("--publish requires notion.token and notion.events_db")
		}

		prof, err := env.lookupProfile(discoverProfile)
		if err != nil {
			return err
		}

		req := model.DiscoveryRequest{
			Query:     discoverQuery,
			Location:  discoverLocation,
			TimeFrame: discoverTimeFrame,
			Interests: discoverInterests,
		}

		state, err := env.discover(ctx, req, prof)
		if err != nil {
			return eris.Wrap(err, "discovery run")
		}

		zap.L().Info("discovery complete",
			zap.String("run_id", state.RunID),
			zap.String("verdict", verdictOf(state)),
			zap.Int("cycles", state.Cycle),
			zap.Int("events", len(state.Curated)),
			zap.Float64("cost_usd", state.TotalCost),
		)

		if discoverPublish && len(state.Curated) > 0 {
			if _, err := publishEvents(ctx, env.notion, cfg.Notion.EventsDB, state); err != nil {
				return eris.Wrap(err, "publish events")
			}
		}

		if discoverJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		}

		formatShortlist(os.Stdout, state)
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverQuery, "query", "", "what to look for, e.g. \"newsworthy events next weekend\" (required)")
	discoverCmd.Flags().StringVar(&discoverLocation, "location", "", "city or region to search")
	discoverCmd.Flags().StringVar(&discoverTimeFrame, "timeframe", "", "time window, e.g. \"next 7 days\"")
	discoverCmd.Flags().StringSliceVar(&discoverInterests, "interests", nil, "interest tags steering strategy and scoring")
	discoverCmd.Flags().StringVar(&discoverProfile, "profile", "", "interest profile supplying defaults")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "print the full run state as JSON")
	discoverCmd.Flags().BoolVar(&discoverPublish, "publish", false, "create a page per event in the Notion events database")
	_ = discoverCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(discoverCmd)
}

func verdictOf(state *model.PipelineState) string {
	if state.Decision == nil {
		return ""
	}
	return string(state.Decision.Verdict)
}

// formatShortlist writes the gate decision and curated events to out.
func formatShortlist(out io.Writer, state *model.PipelineState) {
	if state.Decision != nil {
		_, _ = fmt.Fprintf(out, "Verdict: %s (%s)\n", state.Decision.Verdict, state.Decision.Notes)
		_, _ = fmt.Fprintf(out, "Cycles: %d  Viable: %d  Top score: %d  Cost: $%.4f\n\n",
			state.Cycle, state.Decision.ViableCount, state.Decision.TopScore, state.TotalCost)
	}

	if len(state.Curated) == 0 {
		_, _ = fmt.Fprintln(out, "No events found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tTITLE\tDATE\tVENUE")
	_, _ = fmt.Fprintln(w, "-----\t-----\t----\t-----")
	for _, e := range state.Curated {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			e.Score,
			truncate(e.Title, 48),
			e.Date,
			truncate(e.Venue, 28),
		)
	}
	_ = w.Flush()
}

// truncate shortens s to at most n runes for column display.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
