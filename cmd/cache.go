package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-namespace cache occupancy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		c, err := initCache(ctx)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		stats, err := c.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "cache stats")
		}

		if len(stats) == 0 {
			fmt.Fprintln(os.Stderr, "Cache is empty.")
			return nil
		}

		formatCacheStats(os.Stdout, stats)
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		c, err := initCache(ctx)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		n, err := c.PurgeExpired(ctx)
		if err != nil {
			return eris.Wrap(err, "cache purge")
		}

		zap.L().Info("cache purged", zap.Int("removed", n))
		fmt.Printf("Removed %d expired entries.\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

// formatCacheStats writes a tabular namespace summary to w.
func formatCacheStats(out io.Writer, stats []cache.NamespaceStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAMESPACE\tLIVE\tEXPIRED")
	_, _ = fmt.Fprintln(w, "---------\t----\t-------")
	for _, s := range stats {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", s.Namespace, s.Live, s.Expired)
	}
	_ = w.Flush()
}
