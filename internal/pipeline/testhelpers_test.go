package pipeline

import (
	"time"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/internal/cache"
	"github.com/sells-group/event-scout/internal/model"
)

func newTestCache() *cache.Cache {
	return cache.New(cache.NewMemory(), time.Hour, nil)
}

func testRequest() model.DiscoveryRequest {
	return model.DiscoveryRequest{
		Query:     "protests and rallies",
		Location:  "Chicago",
		TimeFrame: "next week",
		Interests: []string{"politics", "street photography"},
	}
}

func testStrategy() *model.Strategy {
	return &model.Strategy{
		Location:  "Chicago",
		TimeFrame: "next week",
		Interests: []string{"politics", "street photography"},
		Guidance:  "Focus on public gatherings with strong visuals",
		Iteration: 1,
	}
}

// testState builds a first-cycle state ready for the given stage depth.
func testState() *model.PipelineState {
	state := model.NewPipelineState("run-test", testRequest())
	state.Cycle = 1
	return state
}

func testLeads() []model.Lead {
	return []model.Lead{
		{
			Description: "May Day march downtown",
			EventType:   "protest",
			Keywords:    []string{"may day", "labor", "march", "union"},
			Query:       "May Day march downtown may day labor march Chicago 2026",
		},
		{
			Description: "Riverfront jazz festival opening night",
			EventType:   "festival",
			Keywords:    []string{"jazz", "festival", "riverfront"},
			Query:       "Riverfront jazz festival opening night jazz festival riverfront Chicago 2026",
		},
	}
}

func testBundles() []model.EvidenceBundle {
	leads := testLeads()
	return []model.EvidenceBundle{
		{
			Lead: leads[0],
			Results: []model.SearchResult{
				{Title: "May Day march planned", URL: "https://news.example.com/mayday", Content: "Organizers expect thousands downtown.", Score: 0.93},
			},
			Answer: "A large labor march is planned downtown.",
		},
		{
			Lead: leads[1],
			Results: []model.SearchResult{
				{Title: "Jazz festival lineup announced", URL: "https://news.example.com/jazz", Content: "Opening night features three headliners.", Score: 0.88},
			},
		},
	}
}

// viableEvents returns n events at or above the given score, titled
// distinctly so dedupe leaves them alone.
func viableEvents(n, score int) []model.ScoredEvent {
	events := make([]model.ScoredEvent, 0, n)
	names := []string{"March on Main Street", "Harbor Lantern Festival", "City Hall Rally", "Museum Night Opening", "Verdant Park Parade", "Winter Market Launch", "Bridge Run", "Riverside Vigil"}
	for i := 0; i < n; i++ {
		events = append(events, model.ScoredEvent{
			Title: names[i%len(names)],
			Date:  "2026-09-01",
			Venue: "Venue " + string(rune('A'+i)),
			Score: score,
		})
	}
	return events
}

func newTestTracker(ceiling float64) *budget.Tracker {
	return budget.NewTracker(ceiling)
}
