package registry

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/mock"
)

// mockNotionClient stubs the registry's read path against Notion.
type mockNotionClient struct {
	mock.Mock
}

func (m *mockNotionClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	resp, _ := args.Get(0).(*notionapi.DatabaseQueryResponse)
	return resp, args.Error(1)
}

// CreatePage satisfies notion.Client. The registry only reads, so the
// tests never route a call here.
func (m *mockNotionClient) CreatePage(context.Context, *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	panic("registry does not write to Notion")
}
