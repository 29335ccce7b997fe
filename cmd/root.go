package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "Event discovery engine for photojournalists",
	Long:  "Plans a search strategy, prospects candidate events via Claude, verifies them against web evidence, and curates a ranked shortlist, cycling until the results are worth shooting.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
