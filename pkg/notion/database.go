package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches all pages from a Notion database, handling pagination.
// Rate limiting is enforced by the Client (3 req/s by default).
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page

	req := &notionapi.DatabaseQueryRequest{}
	if filter != nil {
		req.Filter = filter.Filter
		req.Sorts = filter.Sorts
		req.PageSize = filter.PageSize
	}

	for {
		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}

		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		req.StartCursor = resp.NextCursor
	}

	return all, nil
}

// QueryActiveSources fetches all pages with Active checked from the given
// source-registry database.
func QueryActiveSources(ctx context.Context, c Client, dbID string) ([]notionapi.Page, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Active",
			Checkbox: &notionapi.CheckboxFilterCondition{
				Equals: true,
			},
		},
	}
	pages, err := QueryAll(ctx, c, dbID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "notion: query active sources")
	}
	return pages, nil
}
