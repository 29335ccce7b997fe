package pipeline

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/internal/cache"
	"github.com/sells-group/event-scout/internal/model"
)

// DefaultMaxLeads caps how many leads one cycle chases.
const DefaultMaxLeads = 25

// LeadSource generates candidate event leads for a strategy. An empty
// result is valid; the strategy just found nothing worth chasing.
type LeadSource interface {
	GenerateLeads(ctx context.Context, strat model.Strategy) ([]model.Lead, float64, error)
}

// Prospector owns the leads field. It turns the cycle's strategy into a
// capped list of leads, each carrying the search query the verifier will
// run for it.
type Prospector struct {
	source   LeadSource
	cache    *cache.Cache
	budget   *budget.Tracker
	maxLeads int
}

// NewProspector wires the prospecting stage.
func NewProspector(source LeadSource, c *cache.Cache, tracker *budget.Tracker, maxLeads int) *Prospector {
	if maxLeads <= 0 {
		maxLeads = DefaultMaxLeads
	}
	return &Prospector{source: source, cache: c, budget: tracker, maxLeads: maxLeads}
}

// Name implements Stage.
func (p *Prospector) Name() string { return StageProspector }

// Process implements Stage.
func (p *Prospector) Process(ctx context.Context, state *model.PipelineState) *model.PipelineState {
	out := state.Clone()
	out.Leads = []model.Lead{}
	if out.Strategy == nil {
		out.RecordError(StageProspector, model.ErrorKindCollaborator,
			eris.New("prospector: no strategy in state"))
		return out
	}
	strat := *out.Strategy
	params := leadParams(strat)

	if cached, ok := cache.GetJSON[[]model.Lead](ctx, p.cache, cache.NamespaceLeads, params); ok {
		out.Leads = p.prepare(cached, strat)
		out.Logf("prospector: %d leads from cache", len(out.Leads))
		return out
	}

	leads, cost, err := p.source.GenerateLeads(ctx, strat)
	spend(out, p.budget, cost)
	if err != nil {
		out.RecordError(StageProspector, model.ErrorKindCollaborator, err)
		zap.L().Warn("prospector: lead source failed",
			zap.String("run_id", out.RunID),
			zap.Int("cycle", out.Cycle),
			zap.Error(err))
		return out
	}

	cache.PutJSON(ctx, p.cache, cache.NamespaceLeads, params, leads)
	out.Leads = p.prepare(leads, strat)
	out.Logf("prospector: %d leads (iteration %d)", len(out.Leads), strat.Iteration)
	return out
}

// Validate implements Stage: the leads field must be set, empty included.
func (p *Prospector) Validate(state *model.PipelineState) bool {
	return state.Leads != nil
}

// prepare caps the lead list and fills in each lead's search query. Raw
// source output is what gets cached, so queries are rebuilt on every
// pass and pick up the current year.
func (p *Prospector) prepare(leads []model.Lead, strat model.Strategy) []model.Lead {
	if len(leads) > p.maxLeads {
		leads = leads[:p.maxLeads]
	}
	out := make([]model.Lead, 0, len(leads))
	for _, lead := range leads {
		lead.Query = buildSearchQuery(lead, strat)
		out = append(out, lead)
	}
	return out
}

// buildSearchQuery composes the verifier's search string from the lead
// description, its strongest keywords, the location and the year.
func buildSearchQuery(lead model.Lead, strat model.Strategy) string {
	kw := lead.Keywords
	if len(kw) > 3 {
		kw = kw[:3]
	}
	parts := make([]string, 0, len(kw)+3)
	for _, part := range append([]string{lead.Description}, kw...) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if strat.Location != "" {
		parts = append(parts, strat.Location)
	}
	parts = append(parts, strconv.Itoa(time.Now().Year()))
	return strings.Join(parts, " ")
}

// leadParams fingerprints the strategy that produced the leads. Iteration
// is part of the fingerprint so a retry cycle prospects fresh even when
// the planner lands on the same plan.
func leadParams(strat model.Strategy) map[string]any {
	return map[string]any{
		"location":   strat.Location,
		"time_frame": strat.TimeFrame,
		"interests":  strat.Interests,
		"guidance":   strat.Guidance,
		"iteration":  strat.Iteration,
	}
}
