package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/internal/cache"
	"github.com/sells-group/event-scout/internal/model"
)

// EvidenceSource gathers raw supporting material for one lead. Cost is
// reported even when the search comes back empty; absence of evidence is
// a billable answer, not an error.
type EvidenceSource interface {
	GatherEvidence(ctx context.Context, lead model.Lead) (model.EvidenceBundle, float64, error)
}

// Verifier owns the evidence field: one bundle per lead, in lead order.
// Each lead is cached and degraded independently, so one dead search
// never empties the whole cycle.
type Verifier struct {
	source  EvidenceSource
	cache   *cache.Cache
	budget  *budget.Tracker
	domains []string
}

// NewVerifier wires the verification stage. domains mirrors the include
// list configured on the evidence source; it participates in the cache
// key so results gathered under different source registries never
// collide.
func NewVerifier(source EvidenceSource, c *cache.Cache, tracker *budget.Tracker, domains []string) *Verifier {
	return &Verifier{source: source, cache: c, budget: tracker, domains: domains}
}

// Name implements Stage.
func (v *Verifier) Name() string { return StageVerifier }

// Process implements Stage.
func (v *Verifier) Process(ctx context.Context, state *model.PipelineState) *model.PipelineState {
	out := state.Clone()
	out.Evidence = make([]model.EvidenceBundle, 0, len(out.Leads))
	for _, lead := range out.Leads {
		out.Evidence = append(out.Evidence, v.gather(ctx, out, lead))
	}
	out.Logf("verifier: %d bundles, %d with results", len(out.Evidence), countNonEmpty(out.Evidence))
	return out
}

// Validate implements Stage: one bundle per lead, always.
func (v *Verifier) Validate(state *model.PipelineState) bool {
	return len(state.Evidence) == len(state.Leads)
}

// gather resolves one lead, cache first. A failure degrades to an empty
// bundle for that lead only and is not cached, so the next pass retries
// the search.
func (v *Verifier) gather(ctx context.Context, state *model.PipelineState, lead model.Lead) model.EvidenceBundle {
	params := evidenceParams(lead, v.domains)
	if cached, ok := cache.GetJSON[model.EvidenceBundle](ctx, v.cache, cache.NamespaceEvidence, params); ok {
		return cached
	}

	bundle, cost, err := v.source.GatherEvidence(ctx, lead)
	spend(state, v.budget, cost)
	if err != nil {
		state.RecordError(StageVerifier, model.ErrorKindCollaborator, err)
		zap.L().Warn("verifier: evidence search failed",
			zap.String("run_id", state.RunID),
			zap.String("query", lead.Query),
			zap.Error(err))
		return model.EvidenceBundle{Lead: lead}
	}

	cache.PutJSON(ctx, v.cache, cache.NamespaceEvidence, params, bundle)
	return bundle
}

func countNonEmpty(bundles []model.EvidenceBundle) int {
	n := 0
	for _, b := range bundles {
		if len(b.Results) > 0 {
			n++
		}
	}
	return n
}

// evidenceParams keys a lead's evidence on its query and the include
// list in force when it was gathered.
func evidenceParams(lead model.Lead, domains []string) map[string]any {
	ds := domains
	if len(ds) == 0 {
		ds = []string{}
	}
	return map[string]any{
		"query":   lead.Query,
		"domains": ds,
	}
}
