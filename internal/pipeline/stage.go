package pipeline

import (
	"context"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/internal/model"
)

// Stage names as they appear in logs and error records.
const (
	StagePlanner    = "planner"
	StageProspector = "prospector"
	StageVerifier   = "verifier"
	StageCurator    = "curator"
)

// Stage is the uniform contract the orchestrator sequences. Process
// consults the cache before doing external work, reports incremental
// spend to the shared budget tracker, and returns a state with only the
// stage's own output field replaced. A failing collaborator is swallowed:
// the stage records the error and returns a degraded (empty or default)
// output so the run keeps moving. Validate is a post-condition check over
// the stage's output; the orchestrator logs when it fails and tests
// assert it directly.
type Stage interface {
	Name() string
	Process(ctx context.Context, state *model.PipelineState) *model.PipelineState
	Validate(state *model.PipelineState) bool
}

// spend records a collaborator's incremental cost on both the shared
// tracker and the run state. The tracker is the ceiling authority; the
// state total is what gets persisted with the run.
func spend(state *model.PipelineState, tracker *budget.Tracker, amount float64) {
	tracker.Add(amount)
	state.AddCost(amount)
}
