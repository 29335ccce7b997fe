package provider

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/event-scout/pkg/anthropic"
	"github.com/sells-group/event-scout/pkg/tavily"
)

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Tavily Mock ---

type mockTavilyClient struct {
	mock.Mock
}

func (m *mockTavilyClient) Search(ctx context.Context, req tavily.SearchRequest) (*tavily.SearchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tavily.SearchResponse), args.Error(1)
}

// textResponse builds a message response with a single text block and
// fixed usage so cost assertions stay deterministic.
func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:    "msg-test",
		Model: testModel,
		Content: []anthropic.ContentBlock{
			{Type: "text", Text: text},
		},
		StopReason: "end_turn",
		Usage: anthropic.TokenUsage{
			InputTokens:  1000,
			OutputTokens: 500,
		},
	}
}

// --- Ensure interface compliance ---
var (
	_ anthropic.Client = (*mockAnthropicClient)(nil)
	_ tavily.Client    = (*mockTavilyClient)(nil)
)
