package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/event-scout/internal/model"
)

var (
	batchFile        string
	batchLimit       int
	batchConcurrency int
)

// batchRequest is one line item in a batch file: a discovery request
// plus an optional profile name.
type batchRequest struct {
	Query     string   `json:"query"`
	Location  string   `json:"location,omitempty"`
	TimeFrame string   `json:"time_frame,omitempty"`
	Interests []string `json:"interests,omitempty"`
	Profile   string   `json:"profile,omitempty"`
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run discovery for a file of requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		requests, err := loadBatchRequests(batchFile)
		if err != nil {
			return err
		}

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentRuns
		}

		return processBatch(ctx, requests, batchLimit, concurrency, func(ctx context.Context, r batchRequest) (*model.PipelineState, error) {
			prof, err := env.lookupProfile(r.Profile)
			if err != nil {
				return nil, err
			}
			req := model.DiscoveryRequest{
				Query:     r.Query,
				Location:  r.Location,
				TimeFrame: r.TimeFrame,
				Interests: r.Interests,
			}
			return env.discover(ctx, req, prof)
		})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "JSON file holding an array of discovery requests (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max requests to process, 0 for all")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "concurrent runs (default from config)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// loadBatchRequests reads a JSON array of discovery requests from path.
func loadBatchRequests(path string) ([]batchRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read batch file %s", path)
	}

	var requests []batchRequest
	if err := json.Unmarshal(data, &requests); err != nil {
		return nil, eris.Wrapf(err, "parse batch file %s", path)
	}

	for i, r := range requests {
		if r.Query == "" {
			return nil, eris.Errorf("batch file %s: request %d has no query", path, i)
		}
	}
	return requests, nil
}

// batchRunFunc executes one discovery request.
type batchRunFunc func(ctx context.Context, req batchRequest) (*model.PipelineState, error)

// processBatch runs requests through run with bounded concurrency.
// Individual failures are logged and counted; they never abort the
// batch.
func processBatch(ctx context.Context, requests []batchRequest, limit, concurrency int, run batchRunFunc) error {
	if len(requests) == 0 {
		zap.L().Info("batch: no requests to process")
		return nil
	}
	if limit > 0 && len(requests) > limit {
		requests = requests[:limit]
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("batch: starting",
		zap.Int("requests", len(requests)),
		zap.Int("concurrency", concurrency),
	)

	var succeeded, failed, accepted atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, r := range requests {
		r := r
		g.Go(func() error {
			state, err := run(ctx, r)
			if err != nil {
				failed.Add(1)
				zap.L().Error("batch: request failed",
					zap.String("query", r.Query),
					zap.Error(err),
				)
				return nil
			}

			succeeded.Add(1)
			if state.Decision != nil && state.Decision.Verdict == model.VerdictAccept {
				accepted.Add(1)
			}
			zap.L().Info("batch: request complete",
				zap.String("run_id", state.RunID),
				zap.String("query", r.Query),
				zap.String("verdict", verdictOf(state)),
				zap.Int("events", len(state.Curated)),
				zap.Float64("cost_usd", state.TotalCost),
			)
			return nil
		})
	}

	err := g.Wait()

	zap.L().Info("batch: finished",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int64("accepted", accepted.Load()),
	)

	return err
}
