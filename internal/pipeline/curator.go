package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/internal/cache"
	"github.com/sells-group/event-scout/internal/model"
)

// Curation defaults, matching the gate's expectations of a short ranked
// shortlist.
const (
	DefaultMaxCurated      = 10
	DefaultDedupeThreshold = 0.6
)

// ScoreSource turns a cycle's evidence into scored candidate events.
type ScoreSource interface {
	ScoreEvents(ctx context.Context, evidence []model.EvidenceBundle, strat model.Strategy) ([]model.ScoredEvent, float64, error)
}

// Curator owns the curated field. It scores the cycle's evidence, clamps
// scores into bounds, collapses near-duplicates and keeps the top of the
// ranking for the gate to judge.
type Curator struct {
	source     ScoreSource
	cache      *cache.Cache
	budget     *budget.Tracker
	similarity Similarity
	threshold  float64
	maxCurated int
}

// NewCurator wires the curation stage. A nil similarity falls back to
// TitleVenueSimilarity.
func NewCurator(source ScoreSource, c *cache.Cache, tracker *budget.Tracker, sim Similarity, threshold float64, maxCurated int) *Curator {
	if sim == nil {
		sim = TitleVenueSimilarity
	}
	if threshold <= 0 {
		threshold = DefaultDedupeThreshold
	}
	if maxCurated <= 0 {
		maxCurated = DefaultMaxCurated
	}
	return &Curator{
		source:     source,
		cache:      c,
		budget:     tracker,
		similarity: sim,
		threshold:  threshold,
		maxCurated: maxCurated,
	}
}

// Name implements Stage.
func (cu *Curator) Name() string { return StageCurator }

// Process implements Stage.
func (cu *Curator) Process(ctx context.Context, state *model.PipelineState) *model.PipelineState {
	out := state.Clone()
	out.Curated = []model.ScoredEvent{}
	if len(out.Evidence) == 0 {
		out.Logf("curator: no evidence to score")
		return out
	}
	var strat model.Strategy
	if out.Strategy != nil {
		strat = *out.Strategy
	}

	params := scoringParams(out.Evidence, strat)
	events, ok := cache.GetJSON[[]model.ScoredEvent](ctx, cu.cache, cache.NamespaceScoring, params)
	if !ok {
		var cost float64
		var err error
		events, cost, err = cu.source.ScoreEvents(ctx, out.Evidence, strat)
		spend(out, cu.budget, cost)
		if err != nil {
			out.RecordError(StageCurator, model.ErrorKindCollaborator, err)
			zap.L().Warn("curator: scoring failed",
				zap.String("run_id", out.RunID),
				zap.Int("cycle", out.Cycle),
				zap.Error(err))
			return out
		}
		cache.PutJSON(ctx, cu.cache, cache.NamespaceScoring, params, events)
	}

	out.Curated = cu.rank(events)
	out.Logf("curator: %d curated from %d scored", len(out.Curated), len(events))
	return out
}

// Validate implements Stage: the curated list is bounded, in-range and
// sorted by score descending.
func (cu *Curator) Validate(state *model.PipelineState) bool {
	if len(state.Curated) > cu.maxCurated {
		return false
	}
	for i, e := range state.Curated {
		if e.Score < 0 || e.Score > 100 {
			return false
		}
		if i > 0 && state.Curated[i-1].Score < e.Score {
			return false
		}
	}
	return true
}

// rank clamps, sorts, dedupes and truncates the scored events. The raw
// source output is what gets cached, so ranking knobs can change without
// invalidating cached scores.
func (cu *Curator) rank(events []model.ScoredEvent) []model.ScoredEvent {
	ranked := make([]model.ScoredEvent, len(events))
	copy(ranked, events)
	for i := range ranked {
		ranked[i].Score = clampScore(ranked[i].Score)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	ranked = collapseDuplicates(ranked, cu.similarity, cu.threshold)
	if len(ranked) > cu.maxCurated {
		ranked = ranked[:cu.maxCurated]
	}
	return ranked
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// scoringParams keys scoring on a digest of the evidence content and the
// interests steering the rubric. Volatile fields like fetch timestamps
// stay out of the digest so re-gathered identical evidence still hits.
func scoringParams(evidence []model.EvidenceBundle, strat model.Strategy) map[string]any {
	h := sha256.New()
	for _, b := range evidence {
		h.Write([]byte(b.Lead.Query))
		h.Write([]byte{0})
		h.Write([]byte(b.Answer))
		h.Write([]byte{0})
		for _, r := range b.Results {
			h.Write([]byte(r.URL))
			h.Write([]byte{1})
			h.Write([]byte(r.Title))
			h.Write([]byte{1})
			h.Write([]byte(r.Content))
			h.Write([]byte{0})
		}
	}
	return map[string]any{
		"evidence":  fmt.Sprintf("%x", h.Sum(nil)),
		"interests": strat.Interests,
	}
}
