package model

import "time"

// Lead is a single hypothesis about an event that might exist, produced
// by the prospector before any verification happens.
type Lead struct {
	Description string   `json:"description"`
	EventType   string   `json:"event_type"`
	Keywords    []string `json:"keywords,omitempty"`
	Query       string   `json:"query"`
}

// SearchResult is one document returned while verifying a lead.
type SearchResult struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Content   string  `json:"content"`
	Score     float64 `json:"score,omitempty"`
	Published string  `json:"published,omitempty"`
}

// EvidenceBundle pairs a lead with whatever corroboration the verifier
// found for it. An empty Results slice is a legitimate outcome: the lead
// was checked and nothing turned up.
type EvidenceBundle struct {
	Lead       Lead           `json:"lead"`
	Results    []SearchResult `json:"results"`
	Answer     string         `json:"answer,omitempty"`
	SearchedAt time.Time      `json:"searched_at"`
}
