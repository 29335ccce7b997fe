// Package provider implements the pipeline's collaborator interfaces on
// top of the Anthropic and Tavily APIs. Every source reports the dollar
// cost of its call alongside the result so the orchestrator can track
// spend even when the payload turns out to be unusable.
package provider

import (
	"strings"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/pkg/anthropic"
)

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or prose around it.
func cleanJSON(text string) string {
	text = stripFences(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// cleanJSONArray is the array counterpart of cleanJSON.
func cleanJSONArray(text string) string {
	text = stripFences(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// claudeCost prices a completed message call with the configured rates.
func claudeCost(calc *budget.Calculator, model string, u anthropic.TokenUsage) float64 {
	return calc.Claude(model,
		int(u.InputTokens), int(u.OutputTokens),
		int(u.CacheCreationInputTokens), int(u.CacheReadInputTokens),
	)
}
