// Package store persists discovery runs and their finalized events.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/event-scout/internal/model"
)

// ErrNotFound is wrapped by operations addressing a run id that does not
// exist. Callers translate it to their own not-found handling (the HTTP
// layer maps it to 404).
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for discovery runs. CompleteRun
// stores the final result and derives the terminal status from its
// verdict: an ERROR verdict marks the run failed, anything else complete.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, req model.DiscoveryRequest) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Events. SaveEvents upserts by dedupe fingerprint, so the same event
	// surfacing in later runs updates its row instead of duplicating it.
	SaveEvents(ctx context.Context, runID string, events []model.ScoredEvent) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
