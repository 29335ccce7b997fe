// Package pipeline implements the cyclic four-stage discovery engine:
// plan, prospect, verify, curate, then decide whether the results are
// good enough or another cycle is worth the spend.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/internal/gate"
	"github.com/sells-group/event-scout/internal/model"
	"github.com/sells-group/event-scout/internal/store"
)

// maxRejectedTitles bounds how many rejected events feed back into the
// next cycle's planning prompt.
const maxRejectedTitles = 5

// Config carries the orchestrator's own knobs. Stage-level knobs (lead
// caps, dedupe threshold) live with the stages.
type Config struct {
	MaxCycles int
	Gate      gate.Config
}

// Pipeline sequences the stages through the decision gate, up to the
// cycle ceiling. The bounded loop in execute is the termination
// guarantee: no matter how stages behave, at most MaxCycles full passes
// run. A Pipeline is scoped to one run, because the tracker accumulates
// a single run's spend against its ceiling; construct a fresh one per
// request.
type Pipeline struct {
	cfg    Config
	store  store.Store
	budget *budget.Tracker
	stages []Stage
}

// New assembles a pipeline over the given stages, in execution order.
func New(cfg Config, st store.Store, tracker *budget.Tracker, stages ...Stage) *Pipeline {
	return &Pipeline{cfg: cfg, store: st, budget: tracker, stages: stages}
}

// Run executes one discovery request to completion. The returned state
// always carries a decision; the error is non-nil only when the run
// could not be recorded at all.
func (p *Pipeline) Run(ctx context.Context, req model.DiscoveryRequest) (*model.PipelineState, error) {
	run, err := p.store.CreateRun(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("pipeline: run starting",
		zap.String("query", req.Query),
		zap.String("location", req.Location),
		zap.Float64("budget_usd", p.budget.Ceiling()))

	p.setStatus(ctx, run.ID, model.RunStatusRunning)
	start := time.Now()

	state := p.execute(ctx, model.NewPipelineState(run.ID, req), log)

	result := buildRunResult(state, time.Since(start))
	if err := p.store.CompleteRun(ctx, run.ID, result); err != nil {
		log.Warn("pipeline: persist result failed", zap.Error(err))
	}
	if len(result.Events) > 0 {
		if err := p.store.SaveEvents(ctx, run.ID, result.Events); err != nil {
			log.Warn("pipeline: save events failed", zap.Error(err))
		}
	}

	log.Info("pipeline: run finished",
		zap.String("verdict", string(result.Verdict)),
		zap.Int("cycles", result.Cycles),
		zap.Int("events", len(result.Events)),
		zap.Float64("cost_usd", result.TotalCost),
		zap.Int64("duration_ms", result.DurationMS))
	return state, nil
}

// execute drives the bounded cycle loop. It never returns a state
// without a decision.
func (p *Pipeline) execute(ctx context.Context, state *model.PipelineState, log *zap.Logger) *model.PipelineState {
	maxCycles := p.cfg.MaxCycles
	if maxCycles < 1 {
		maxCycles = 1
	}

	for cycle := 1; cycle <= maxCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			state.RecordError("pipeline", model.ErrorKindFatal, eris.Wrap(err, "pipeline: cancelled"))
			state.Decision = &model.Decision{Verdict: model.VerdictError, Notes: "run cancelled"}
			return state
		}
		state.Cycle = cycle
		log.Info("pipeline: cycle starting", zap.Int("cycle", cycle), zap.Int("max_cycles", maxCycles))

		for _, st := range p.stages {
			stageStart := time.Now()
			state = st.Process(ctx, state)
			if !st.Validate(state) {
				log.Warn("pipeline: stage output failed validation",
					zap.String("stage", st.Name()), zap.Int("cycle", cycle))
			}
			log.Info("pipeline: stage complete",
				zap.String("stage", st.Name()),
				zap.Int("cycle", cycle),
				zap.Duration("took", time.Since(stageStart)),
				zap.Float64("spent_usd", p.budget.Spent()))

			if fatal := state.FatalError(); fatal != nil {
				log.Error("pipeline: fatal stage error",
					zap.String("stage", fatal.Stage), zap.String("error", fatal.Message))
				state.Decision = &model.Decision{
					Verdict: model.VerdictError,
					Notes:   fmt.Sprintf("fatal error in %s: %s", fatal.Stage, fatal.Message),
				}
				return state
			}
			if p.budget.Exceeded() {
				state.RecordError(st.Name(), model.ErrorKindBudget,
					eris.Errorf("budget ceiling %.2f reached after %s, spent %.4f",
						p.budget.Ceiling(), st.Name(), p.budget.Spent()))
				log.Warn("pipeline: budget ceiling reached, skipping to gate",
					zap.String("stage", st.Name()),
					zap.Float64("spent_usd", p.budget.Spent()),
					zap.Float64("ceiling_usd", p.budget.Ceiling()))
				break
			}
		}

		d := gate.Decide(state.Curated, state.Cycle, maxCycles, p.budget.Exceeded(), p.cfg.Gate)
		state.Decision = &d
		state.Logf("gate: %s (%s)", d.Verdict, d.Notes)
		log.Info("pipeline: gate decision",
			zap.String("verdict", string(d.Verdict)),
			zap.String("notes", d.Notes),
			zap.Int("viable", d.ViableCount),
			zap.Int("top_score", d.TopScore))

		if d.Verdict != model.VerdictRetry {
			return state
		}
		state.Feedback = feedbackFromDecision(d, state.Curated, p.cfg.Gate)
	}
	return state
}

func (p *Pipeline) setStatus(ctx context.Context, runID string, status model.RunStatus) {
	if err := p.store.UpdateRunStatus(ctx, runID, status); err != nil {
		zap.L().Warn("pipeline: update run status failed",
			zap.String("run_id", runID), zap.Error(err))
	}
}

// feedbackFromDecision condenses a retry verdict into planner guidance
// for the next cycle: the gate's notes plus the titles it rejected.
func feedbackFromDecision(d model.Decision, curated []model.ScoredEvent, cfg gate.Config) *model.Feedback {
	fb := &model.Feedback{
		Notes:       d.Notes,
		ViableCount: d.ViableCount,
		TopScore:    d.TopScore,
	}
	for _, e := range curated {
		if e.Score < cfg.ViableThreshold {
			fb.RejectedTitles = append(fb.RejectedTitles, e.Title)
		}
		if len(fb.RejectedTitles) == maxRejectedTitles {
			break
		}
	}
	return fb
}

func buildRunResult(state *model.PipelineState, took time.Duration) *model.RunResult {
	result := &model.RunResult{
		Events:     state.Curated,
		Cycles:     state.Cycle,
		TotalCost:  state.TotalCost,
		Errors:     state.Errors,
		DurationMS: took.Milliseconds(),
	}
	if state.Decision != nil {
		result.Verdict = state.Decision.Verdict
		result.Notes = state.Decision.Notes
	}
	return result
}
