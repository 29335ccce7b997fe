package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/event-scout/internal/model"
)

// Similarity scores how alike two curated events are, in [0,1]. The
// curator collapses pairs at or above its configured threshold.
type Similarity func(a, b model.ScoredEvent) float64

// TitleVenueSimilarity is the default similarity: Jaccard token overlap
// over the normalized title and venue. Events dated on different days are
// never duplicates, however similar their titles read.
func TitleVenueSimilarity(a, b model.ScoredEvent) float64 {
	if a.Date != "" && b.Date != "" && normalizeText(a.Date) != normalizeText(b.Date) {
		return 0
	}
	at := tokenSet(normalizeText(a.Title + " " + a.Venue))
	bt := tokenSet(normalizeText(b.Title + " " + b.Venue))
	return jaccard(at, bt)
}

var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeText lowercases and strips diacritics so "Café Opening" and
// "cafe opening" compare equal.
func normalizeText(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// collapseDuplicates removes near-duplicates from a score-sorted slice.
// The first, and therefore higher-scored, of each similar pair survives;
// ties keep the earlier event.
func collapseDuplicates(events []model.ScoredEvent, sim Similarity, threshold float64) []model.ScoredEvent {
	if len(events) < 2 || sim == nil || threshold <= 0 {
		return events
	}
	kept := make([]model.ScoredEvent, 0, len(events))
	for _, e := range events {
		dup := false
		for _, k := range kept {
			if sim(e, k) >= threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, e)
		}
	}
	return kept
}
