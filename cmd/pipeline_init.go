package main

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/internal/cache"
	"github.com/sells-group/event-scout/internal/model"
	"github.com/sells-group/event-scout/internal/pipeline"
	"github.com/sells-group/event-scout/internal/provider"
	"github.com/sells-group/event-scout/internal/registry"
	"github.com/sells-group/event-scout/internal/store"
	anthropicpkg "github.com/sells-group/event-scout/pkg/anthropic"
	"github.com/sells-group/event-scout/pkg/notion"
	"github.com/sells-group/event-scout/pkg/tavily"
)

// pipelineEnv holds the long-lived pieces shared by every discovery run:
// the history store, the response cache, API clients, and the loaded
// registries. Pipelines themselves are built per run via newPipeline,
// because a pipeline owns a single run's budget tracker.
type pipelineEnv struct {
	Store    store.Store
	Cache    *cache.Cache
	Sources  *model.SourceRegistry // nil when Notion is not configured
	Profiles []model.InterestProfile

	anthropic anthropicpkg.Client
	tavily    tavily.Client
	notion    notion.Client // nil when no token is configured
	calc      *budget.Calculator
}

// Close releases resources held by the pipeline environment.
func (e *pipelineEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initPipeline validates config for the given command mode, then opens
// the store and cache, constructs API clients, and loads the source
// registry and interest profiles. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	c, err := initCache(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	env := &pipelineEnv{
		Store:     st,
		Cache:     c,
		anthropic: anthropicpkg.NewClient(cfg.Anthropic.Key),
		tavily: tavily.NewClient(cfg.Tavily.Key,
			tavily.WithBaseURL(cfg.Tavily.BaseURL),
			tavily.WithSearchDepth(cfg.Tavily.SearchDepth),
			tavily.WithMaxResults(cfg.Tavily.MaxResults),
		),
		calc: budget.NewCalculator(cfg.Budget.Rates),
	}

	if cfg.Notion.Token != "" {
		env.notion = notion.NewClient(cfg.Notion.Token)
	}

	// Trusted sources come from Notion when configured. Discovery works
	// without them, just with unrestricted web search.
	if env.notion != nil && cfg.Notion.SourceDB != "" {
		sources, err := registry.LoadSourceRegistry(ctx, env.notion, cfg.Notion.SourceDB)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "load source registry")
		}
		env.Sources = sources
		zap.L().Info("source registry loaded", zap.Int("sources", len(sources.Sources)))
	} else {
		zap.L().Debug("notion not configured, running without trusted sources")
	}

	// The profiles file is optional; a fresh install has none.
	if _, statErr := os.Stat(cfg.Registry.ProfilesPath); statErr == nil {
		profiles, err := registry.LoadProfiles(cfg.Registry.ProfilesPath)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "load interest profiles")
		}
		env.Profiles = profiles
		zap.L().Info("interest profiles loaded", zap.Int("profiles", len(profiles)))
	}

	return env, nil
}

// initCache opens the SQLite response cache, or an in-memory one when no
// path is configured.
func initCache(ctx context.Context) (*cache.Cache, error) {
	var backend cache.Backend
	if cfg.Cache.Path != "" {
		b, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, eris.Wrap(err, "open cache")
		}
		backend = b
	} else {
		backend = cache.NewMemory()
	}
	if err := backend.Migrate(ctx); err != nil {
		_ = backend.Close()
		return nil, err
	}
	return cache.New(backend, cfg.Cache.DefaultTTL, cfg.Cache.TTL), nil
}

// newPipeline assembles a fresh single-run pipeline. The budget tracker
// is per-run state, so the stage set is rebuilt around a new one each
// time.
func (e *pipelineEnv) newPipeline(trusted []string) *pipeline.Pipeline {
	tracker := budget.NewTracker(cfg.Budget.CeilingUSD)

	strategies := provider.NewStrategySource(e.anthropic, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, e.calc)
	leads := provider.NewLeadSource(e.anthropic, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, cfg.Pipeline.MaxLeads, e.calc)
	evidence := provider.NewEvidenceSource(e.tavily, e.calc, cfg.Tavily.RatePerSec, cfg.Tavily.MaxResults, trusted)
	scores := provider.NewScoreSource(e.anthropic, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, e.calc)

	return pipeline.New(
		pipeline.Config{MaxCycles: cfg.Pipeline.MaxCycles, Gate: cfg.Gate},
		e.Store,
		tracker,
		pipeline.NewPlanner(strategies, e.Cache, tracker),
		pipeline.NewProspector(leads, e.Cache, tracker, cfg.Pipeline.MaxLeads),
		pipeline.NewVerifier(evidence, e.Cache, tracker, trusted),
		pipeline.NewCurator(scores, e.Cache, tracker, nil, cfg.Pipeline.DedupeThreshold, cfg.Pipeline.MaxCurated),
	)
}

// discover runs one request end to end. When a profile is given, blank
// request fields take its defaults, its mined keywords widen the
// interest list, and its domain allowlist joins the trusted set.
func (e *pipelineEnv) discover(ctx context.Context, req model.DiscoveryRequest, prof *model.InterestProfile) (*model.PipelineState, error) {
	if prof != nil {
		req = prof.Apply(req)
		req.Interests = mergeUnique(req.Interests, prof.Keywords)
	}
	return e.newPipeline(e.trustedDomains(req.Interests, prof)).Run(ctx, req)
}

// lookupProfile resolves a profile name. Unknown names are an error so a
// typo does not silently run unprofiled.
func (e *pipelineEnv) lookupProfile(name string) (*model.InterestProfile, error) {
	if name == "" {
		return nil, nil
	}
	p, ok := registry.FindProfile(e.Profiles, name)
	if !ok {
		return nil, eris.Errorf("unknown profile: %s", name)
	}
	return &p, nil
}

// trustedDomains merges the source registry's domains for the given
// interests with the profile's own allowlist.
func (e *pipelineEnv) trustedDomains(interests []string, prof *model.InterestProfile) []string {
	var domains []string
	if e.Sources != nil {
		domains = e.Sources.DomainsFor(interests)
	}
	if prof != nil {
		domains = mergeUnique(domains, prof.Domains)
	}
	return domains
}

// mergeUnique appends extra onto base, dropping case-insensitive
// duplicates and blanks while preserving order.
func mergeUnique(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, s := range append(append([]string(nil), base...), extra...) {
		k := strings.ToLower(strings.TrimSpace(s))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
