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

const leadsSystemPrompt = `You are an expert event researcher for photojournalists.

Your job is to generate SPECIFIC, CONCRETE event leads that photographers can cover.

Event types to consider: protests and demonstrations, cultural festivals and parades, political rallies and town halls, sports events and marathons, art exhibitions and gallery openings, community events and fundraisers, press conferences and announcements, street fairs and markets.

Requirements:
1. Each event must be specific and searchable
2. Include organization names, venue names, or specific themes
3. Consider seasonal events, recurring events, and current news
4. Generate diverse event types for comprehensive coverage

Do not generate generic descriptions without specifics, events without searchable keywords, or past events.

Respond with a valid JSON object:
{"leads": [{"description": "...", "event_type": "...", "keywords": ["..."]}]}`

const leadsUserPrompt = `Generate up to %d specific event leads for %s, %s.

Today is %s. Only include events realistically happening in the requested time frame, never events that already happened.

Focus on: %s
Guidance: %s

Return the JSON object now.`

// AnthropicLeadSource turns a strategy into concrete event hypotheses.
type AnthropicLeadSource struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	maxLeads  int
	calc      *budget.Calculator
}

// NewLeadSource creates a lead source that asks for at most maxLeads leads.
func NewLeadSource(client anthropic.Client, modelName string, maxTokens int64, maxLeads int, calc *budget.Calculator) *AnthropicLeadSource {
	return &AnthropicLeadSource{
		client:    client,
		model:     modelName,
		maxTokens: maxTokens,
		maxLeads:  maxLeads,
		calc:      calc,
	}
}

// GenerateLeads asks the model for event leads matching the strategy.
// Returned leads carry no search query yet; the prospector builds those.
func (s *AnthropicLeadSource) GenerateLeads(ctx context.Context, strat model.Strategy) ([]model.Lead, float64, error) {
	interests := strings.Join(strat.Interests, ", ")
	if interests == "" {
		interests = "newsworthy events"
	}

	prompt := fmt.Sprintf(leadsUserPrompt,
		s.maxLeads,
		strat.Location,
		strat.TimeFrame,
		time.Now().Format("Monday, January 2, 2006"),
		interests,
		strat.Guidance,
	)

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    anthropic.CachedSystem(leadsSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, 0, eris.Wrap(err, "leads: create message")
	}

	cost := claudeCost(s.calc, s.model, resp.Usage)
	resp.Usage.LogCost(s.model, "leads")

	var parsed struct {
		Leads []struct {
			Description string   `json:"description"`
			EventType   string   `json:"event_type"`
			Keywords    []string `json:"keywords"`
		} `json:"leads"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &parsed); err != nil {
		return nil, cost, eris.Wrap(err, "leads: parse response")
	}

	var leads []model.Lead
	for _, l := range parsed.Leads {
		if strings.TrimSpace(l.Description) == "" {
			continue
		}
		leads = append(leads, model.Lead{
			Description: l.Description,
			EventType:   l.EventType,
			Keywords:    l.Keywords,
		})
	}

	zap.L().Debug("leads: generated",
		zap.Int("count", len(leads)),
		zap.String("location", strat.Location),
	)
	return leads, cost, nil
}
