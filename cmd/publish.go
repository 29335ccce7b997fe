package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/model"
	"github.com/sells-group/event-scout/pkg/notion"
)

// publishEvents creates one page per curated event in the Notion events
// database, in shortlist order. It stops at the first failure and
// returns how many pages were created before it.
func publishEvents(ctx context.Context, client notion.Client, dbID string, state *model.PipelineState) (int, error) {
	for i, e := range state.Curated {
		_, err := client.CreatePage(ctx, &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: eventPageProperties(state.RunID, e),
		})
		if err != nil {
			return i, eris.Wrap(err, fmt.Sprintf("publish: create page for %q", e.Title))
		}
	}

	zap.L().Info("events published",
		zap.String("run_id", state.RunID),
		zap.String("database_id", dbID),
		zap.Int("pages", len(state.Curated)),
	)
	return len(state.Curated), nil
}

// eventPageProperties maps a scored event onto the events database
// schema. Optional columns are omitted rather than written blank, since
// Notion renders empty rich text as a cleared cell edit.
func eventPageProperties(runID string, e model.ScoredEvent) notionapi.Properties {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: richText(e.Title),
		},
		"Score": notionapi.NumberProperty{
			Number: float64(e.Score),
		},
		"Run": notionapi.RichTextProperty{
			RichText: richText(runID),
		},
	}

	if d, err := time.Parse("2006-01-02", e.Date); err == nil {
		start := notionapi.Date(d)
		props["Date"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &start},
		}
	}
	if e.Venue != "" {
		props["Venue"] = notionapi.RichTextProperty{RichText: richText(e.Venue)}
	}
	if e.Summary != "" {
		props["Summary"] = notionapi.RichTextProperty{RichText: richText(e.Summary)}
	}
	if len(e.URLs) > 0 {
		props["URL"] = notionapi.URLProperty{URL: e.URLs[0]}
	}

	return props
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{Text: &notionapi.Text{Content: s}},
	}
}
