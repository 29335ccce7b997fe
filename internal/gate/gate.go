// Package gate holds the decision rules that end or extend a discovery
// run. Decide is a pure function of its arguments so every verdict can be
// reproduced from the run log.
package gate

import (
	"fmt"

	"github.com/sells-group/event-scout/internal/model"
)

// Config carries the numeric knobs the rules compare against.
type Config struct {
	ViableThreshold         int `mapstructure:"viable_threshold"`
	MinViableCount          int `mapstructure:"min_viable_count"`
	HighConfidenceThreshold int `mapstructure:"high_confidence_threshold"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		ViableThreshold:         70,
		MinViableCount:          5,
		HighConfidenceThreshold: 80,
	}
}

// Decide evaluates the cycle's curated events against the gate rules, in
// order:
//
//  1. cycle ceiling hit          -> accept, whatever we have is final
//  2. budget ceiling hit         -> accept rather than keep spending
//  3. too few viable events      -> retry
//  4. best event not convincing  -> retry
//  5. otherwise                  -> accept
//
// The curated slice is expected sorted by score descending. An empty
// slice at the cycle ceiling still accepts: no results is a legitimate
// terminal outcome, not an error.
func Decide(curated []model.ScoredEvent, cycleCount, maxCycles int, budgetExceeded bool, cfg Config) model.Decision {
	viable := 0
	sum := 0
	for _, e := range curated {
		if e.Score >= cfg.ViableThreshold {
			viable++
		}
		sum += e.Score
	}
	top := 0
	mean := 0.0
	if len(curated) > 0 {
		top = curated[0].Score
		mean = float64(sum) / float64(len(curated))
	}

	d := model.Decision{ViableCount: viable, TopScore: top, MeanScore: mean}

	switch {
	case cycleCount >= maxCycles:
		d.Verdict = model.VerdictAccept
		d.Notes = "max cycles reached"
	case budgetExceeded:
		d.Verdict = model.VerdictAccept
		d.Notes = "budget ceiling reached"
	case viable < cfg.MinViableCount:
		d.Verdict = model.VerdictRetry
		d.Notes = fmt.Sprintf("%d viable events, need %d at score >= %d",
			viable, cfg.MinViableCount, cfg.ViableThreshold)
	case len(curated) > 0 && top < cfg.HighConfidenceThreshold:
		d.Verdict = model.VerdictRetry
		d.Notes = "no high-confidence match"
	default:
		d.Verdict = model.VerdictAccept
		d.Notes = fmt.Sprintf("%d viable events, mean score %.1f", viable, mean)
	}
	return d
}
