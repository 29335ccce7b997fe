package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/internal/model"
	"github.com/sells-group/event-scout/pkg/anthropic"
)

const strategySystemPrompt = `You are an expert news editor planning event coverage for photojournalists.

Your job is to:
1. Understand what the user wants to find
2. If this is a retry, understand what went wrong and adjust
3. Produce a search strategy that helps find the right events
4. Write specific guidance for generating better event leads

Consider event types that match the user's interests, specific keywords and themes to focus on, what to avoid based on any feedback, and seasonal context.

Respond with a valid JSON object:
{"location": "...", "time_frame": "...", "interests": ["..."], "guidance": "..."}`

// defaultGuidance is substituted when the model returns no guidance text.
const defaultGuidance = "Generate diverse newsworthy events"

// AnthropicStrategySource plans each cycle's search strategy with Claude.
type AnthropicStrategySource struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	calc      *budget.Calculator
}

// NewStrategySource creates a strategy source backed by the given client.
func NewStrategySource(client anthropic.Client, modelName string, maxTokens int64, calc *budget.Calculator) *AnthropicStrategySource {
	return &AnthropicStrategySource{
		client:    client,
		model:     modelName,
		maxTokens: maxTokens,
		calc:      calc,
	}
}

// GenerateStrategy asks the model for a strategy tuned to the request and,
// on retries, the previous cycle's gate feedback. The cost is returned even
// when the response cannot be parsed so the caller can still count spend.
func (s *AnthropicStrategySource) GenerateStrategy(ctx context.Context, req model.DiscoveryRequest, prior *model.Feedback) (*model.Strategy, float64, error) {
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    anthropic.CachedSystem(strategySystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildStrategyPrompt(req, prior)},
		},
	})
	if err != nil {
		return nil, 0, eris.Wrap(err, "strategy: create message")
	}

	cost := claudeCost(s.calc, s.model, resp.Usage)
	resp.Usage.LogCost(s.model, "strategy")

	var parsed struct {
		Location  string   `json:"location"`
		TimeFrame string   `json:"time_frame"`
		Interests []string `json:"interests"`
		Guidance  string   `json:"guidance"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &parsed); err != nil {
		return nil, cost, eris.Wrap(err, "strategy: parse response")
	}

	strat := &model.Strategy{
		Location:  parsed.Location,
		TimeFrame: parsed.TimeFrame,
		Interests: parsed.Interests,
		Guidance:  parsed.Guidance,
	}
	fillStrategyDefaults(strat, req)
	return strat, cost, nil
}

// fillStrategyDefaults backfills fields the model left empty from the
// original request, so a partially parsed strategy is still usable.
func fillStrategyDefaults(s *model.Strategy, req model.DiscoveryRequest) {
	if strings.TrimSpace(s.Location) == "" {
		s.Location = req.Location
	}
	if strings.TrimSpace(s.TimeFrame) == "" {
		s.TimeFrame = req.TimeFrame
	}
	if len(s.Interests) == 0 {
		s.Interests = req.Interests
	}
	if strings.TrimSpace(s.Guidance) == "" {
		s.Guidance = defaultGuidance
	}
}

func buildStrategyPrompt(req model.DiscoveryRequest, prior *model.Feedback) string {
	var b strings.Builder

	fmt.Fprintf(&b, "User request: %s\n", req.Query)
	if req.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", req.Location)
	}
	if req.TimeFrame != "" {
		fmt.Fprintf(&b, "Time frame: %s\n", req.TimeFrame)
	}
	if len(req.Interests) > 0 {
		fmt.Fprintf(&b, "User interests: %s\n", strings.Join(req.Interests, ", "))
	}

	if prior != nil {
		b.WriteString("\nThis is a retry. Feedback from the previous attempt:\n")
		fmt.Fprintf(&b, "%s\n", prior.Notes)
		fmt.Fprintf(&b, "Viable events found: %d (top score %d)\n", prior.ViableCount, prior.TopScore)
		if len(prior.RejectedTitles) > 0 {
			fmt.Fprintf(&b, "Events found but rejected: %s\n", strings.Join(prior.RejectedTitles, "; "))
		}
	}

	b.WriteString("\nCreate the search strategy now.")
	return b.String()
}
