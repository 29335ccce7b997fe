package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/internal/cache"
	"github.com/sells-group/event-scout/internal/model"
)

// StrategySource produces a search strategy for one cycle. Implementations
// should come back with something usable whenever they can; a nil strategy
// means the collaborator failed outright and the planner falls back.
type StrategySource interface {
	GenerateStrategy(ctx context.Context, req model.DiscoveryRequest, prior *model.Feedback) (*model.Strategy, float64, error)
}

// Planner owns the strategy field. Cache first, then the strategy source,
// then a default strategy derived from the request, in that order. Only a
// run that cannot produce even the default is fatal.
type Planner struct {
	source   StrategySource
	cache    *cache.Cache
	budget   *budget.Tracker
	fallback func(model.DiscoveryRequest) *model.Strategy
}

// NewPlanner wires the planning stage.
func NewPlanner(source StrategySource, c *cache.Cache, tracker *budget.Tracker) *Planner {
	return &Planner{source: source, cache: c, budget: tracker, fallback: defaultStrategy}
}

// Name implements Stage.
func (p *Planner) Name() string { return StagePlanner }

// Process implements Stage.
func (p *Planner) Process(ctx context.Context, state *model.PipelineState) *model.PipelineState {
	out := state.Clone()
	params := strategyParams(out)

	if cached, ok := cache.GetJSON[model.Strategy](ctx, p.cache, cache.NamespaceStrategy, params); ok {
		out.Strategy = &cached
		out.Logf("planner: strategy from cache (iteration %d)", cached.Iteration)
		return out
	}

	strat, cost, err := p.source.GenerateStrategy(ctx, out.Request, out.Feedback)
	spend(out, p.budget, cost)
	if err != nil {
		out.RecordError(StagePlanner, model.ErrorKindCollaborator, err)
		zap.L().Warn("planner: strategy source failed",
			zap.String("run_id", out.RunID),
			zap.Int("cycle", out.Cycle),
			zap.Error(err))
		strat = nil
	}

	if strat != nil {
		strat.Iteration = out.Cycle
		cache.PutJSON(ctx, p.cache, cache.NamespaceStrategy, params, *strat)
		out.Strategy = strat
		out.Logf("planner: strategy for %s, %s (iteration %d)", strat.Location, strat.TimeFrame, strat.Iteration)
		return out
	}

	// Fallback strategies are deliberately not cached: the source may
	// recover before the TTL would let us ask it again.
	if strat = p.fallback(out.Request); strat == nil {
		out.RecordError(StagePlanner, model.ErrorKindFatal,
			eris.New("planner: no strategy from source and no default"))
		return out
	}
	strat.Iteration = out.Cycle
	out.Strategy = strat
	out.Logf("planner: default strategy for %s, %s", strat.Location, strat.TimeFrame)
	return out
}

// Validate implements Stage: planning must end with a strategy in hand.
func (p *Planner) Validate(state *model.PipelineState) bool {
	return state.Strategy != nil
}

// strategyParams keys the strategy cache on everything that shapes the
// prompt: the request, the current iteration and any retry feedback.
func strategyParams(state *model.PipelineState) map[string]any {
	params := map[string]any{
		"query":      state.Request.Query,
		"location":   state.Request.Location,
		"time_frame": state.Request.TimeFrame,
		"interests":  state.Request.Interests,
		"iteration":  state.Cycle,
	}
	if state.Feedback != nil {
		params["feedback"] = state.Feedback.Notes
	}
	return params
}

// defaultStrategy is the built-in fallback when the strategy source is
// unavailable. The hard defaults keep even an empty request searchable.
func defaultStrategy(req model.DiscoveryRequest) *model.Strategy {
	s := &model.Strategy{
		Location:  req.Location,
		TimeFrame: req.TimeFrame,
		Interests: append([]string(nil), req.Interests...),
		Guidance:  "Generate diverse newsworthy events",
		Fallback:  true,
	}
	if s.Location == "" {
		s.Location = "New York City"
	}
	if s.TimeFrame == "" {
		s.TimeFrame = "this week"
	}
	if len(s.Interests) == 0 {
		s.Interests = []string{"events"}
	}
	return s
}
