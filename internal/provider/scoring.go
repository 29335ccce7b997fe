package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/internal/model"
	"github.com/sells-group/event-scout/pkg/anthropic"
)

const scoringSystemPrompt = `You are a newsroom fact-checker turning raw search results into a list of concrete, coverable events.

Extract specific events with dates, venues, and organizers from the evidence. When multiple sources describe the same event, combine their information into one entry. Skip profile pages, calendar listings, and events that already happened.

Score each event 0-100 based on photographic potential (visual interest, action, emotion), newsworthiness (timeliness, relevance, impact), and specificity (clear date, venue, access info).

Respond with a valid JSON array:
[{"title": "...", "date": "YYYY-MM-DD", "venue": "...", "organizer": "...", "summary": "...", "urls": ["..."], "score": 85, "rationale": "..."}]`

// Evidence formatting limits keep the scoring prompt inside a sane token
// budget for a full verifier pass.
const (
	maxResultsPerLead = 5
	maxContentChars   = 500
)

// AnthropicScoreSource extracts and scores events from gathered evidence.
type AnthropicScoreSource struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	calc      *budget.Calculator
}

// NewScoreSource creates a score source backed by the given client.
func NewScoreSource(client anthropic.Client, modelName string, maxTokens int64, calc *budget.Calculator) *AnthropicScoreSource {
	return &AnthropicScoreSource{
		client:    client,
		model:     modelName,
		maxTokens: maxTokens,
		calc:      calc,
	}
}

// ScoreEvents extracts scored events from the evidence bundles. Scores
// come back as the model produced them; the curator clamps out-of-range
// values. Empty evidence short-circuits without an API call.
func (s *AnthropicScoreSource) ScoreEvents(ctx context.Context, evidence []model.EvidenceBundle, strat model.Strategy) ([]model.ScoredEvent, float64, error) {
	if len(evidence) == 0 {
		return nil, 0, nil
	}

	interests := strings.Join(strat.Interests, ", ")
	if interests == "" {
		interests = "newsworthy events"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current date: %s\n", time.Now().Format("2006-01-02"))
	fmt.Fprintf(&b, "User interests: %s\n", interests)
	b.WriteString("\nExtract and score unique events from these search results:\n")
	b.WriteString(formatEvidence(evidence))
	b.WriteString("\n\nReturn the JSON array now.")

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    anthropic.CachedSystem(scoringSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: b.String()},
		},
	})
	if err != nil {
		return nil, 0, eris.Wrap(err, "scoring: create message")
	}

	cost := claudeCost(s.calc, s.model, resp.Usage)
	resp.Usage.LogCost(s.model, "scoring")

	var events []model.ScoredEvent
	if err := json.Unmarshal([]byte(cleanJSONArray(resp.Text())), &events); err != nil {
		return nil, cost, eris.Wrap(err, "scoring: parse response")
	}

	kept := events[:0]
	for _, e := range events {
		if strings.TrimSpace(e.Title) == "" {
			continue
		}
		kept = append(kept, e)
	}

	zap.L().Debug("scoring: extracted events",
		zap.Int("count", len(kept)),
		zap.Int("evidence_bundles", len(evidence)),
	)
	return kept, cost, nil
}

// formatEvidence renders bundles the way the scoring prompt expects,
// truncating long content and capping results per lead.
func formatEvidence(evidence []model.EvidenceBundle) string {
	var b strings.Builder

	for i, bundle := range evidence {
		fmt.Fprintf(&b, "\n=== Lead %d: %s ===\n", i+1, bundle.Lead.Description)

		results := bundle.Results
		if len(results) > maxResultsPerLead {
			results = results[:maxResultsPerLead]
		}
		for j, r := range results {
			content := r.Content
			if len(content) > maxContentChars {
				content = content[:maxContentChars] + "..."
			}
			fmt.Fprintf(&b, "\nSource %d: %s\n", j+1, r.URL)
			fmt.Fprintf(&b, "Title: %s\n", r.Title)
			fmt.Fprintf(&b, "Content: %s\n", content)
		}

		if bundle.Answer != "" {
			fmt.Fprintf(&b, "\nSummary: %s\n", bundle.Answer)
		}
	}

	return b.String()
}
