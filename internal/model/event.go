package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Verdict is the gate's call on a cycle's curated output.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictRetry  Verdict = "retry"
	VerdictError  Verdict = "error"
)

// ScoredEvent is one curated candidate event with its 0-100 relevance score.
type ScoredEvent struct {
	Title     string   `json:"title"`
	Date      string   `json:"date,omitempty"`
	Venue     string   `json:"venue,omitempty"`
	Organizer string   `json:"organizer,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	URLs      []string `json:"urls,omitempty"`
	Score     int      `json:"score"`
	Rationale string   `json:"rationale,omitempty"`
}

// Fingerprint returns SHA-256 hex of the normalized identity fields, used
// to spot the same real-world event surfacing under different sources.
func (e ScoredEvent) Fingerprint() string {
	normalized := fmt.Sprintf("%s|%s|%s",
		strings.ToLower(strings.TrimSpace(e.Title)),
		strings.ToLower(strings.TrimSpace(e.Date)),
		strings.ToLower(strings.TrimSpace(e.Venue)),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// Decision records the gate's verdict and the numbers behind it.
type Decision struct {
	Verdict     Verdict `json:"verdict"`
	Notes       string  `json:"notes"`
	ViableCount int     `json:"viable_count"`
	TopScore    int     `json:"top_score"`
	MeanScore   float64 `json:"mean_score,omitempty"`
}
