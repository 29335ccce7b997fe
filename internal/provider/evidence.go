package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/event-scout/internal/budget"
	"github.com/sells-group/event-scout/internal/model"
	"github.com/sells-group/event-scout/internal/resilience"
	"github.com/sells-group/event-scout/pkg/tavily"
)

// Facebook results are login-walled and useless as verification evidence.
var excludedDomains = []string{"facebook.com"}

// TavilyEvidenceSource verifies leads against live web search.
type TavilyEvidenceSource struct {
	client     tavily.Client
	limiter    *rate.Limiter
	retry      resilience.Policy
	calc       *budget.Calculator
	maxResults int
	domains    []string
}

// NewEvidenceSource creates an evidence source. ratePerSec <= 0 disables
// throttling; trusted restricts searches to the registry's domains when
// non-empty.
func NewEvidenceSource(client tavily.Client, calc *budget.Calculator, ratePerSec float64, maxResults int, trusted []string) *TavilyEvidenceSource {
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return &TavilyEvidenceSource{
		client:  client,
		limiter: limiter,
		retry: resilience.Policy{
			Attempts:  3,
			BaseDelay: 500 * time.Millisecond,
			Retryable: tavilyRetryable,
			OnRetry:   resilience.LogRetries("tavily", "search"),
		},
		calc:       calc,
		maxResults: maxResults,
		domains:    trusted,
	}
}

// GatherEvidence searches for corroboration of one lead. A successful
// search costs one query even when it returns zero results; a failed
// search costs nothing because the API never completed it.
func (s *TavilyEvidenceSource) GatherEvidence(ctx context.Context, lead model.Lead) (model.EvidenceBundle, float64, error) {
	bundle := model.EvidenceBundle{Lead: lead}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return bundle, 0, eris.Wrap(err, "evidence: rate limit")
		}
	}

	req := tavily.SearchRequest{
		Query:          lead.Query,
		MaxResults:     s.maxResults,
		IncludeAnswer:  true,
		ExcludeDomains: excludedDomains,
	}
	if len(s.domains) > 0 {
		req.IncludeDomains = s.domains
	}

	resp, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*tavily.SearchResponse, error) {
		return s.client.Search(ctx, req)
	})
	if err != nil {
		return bundle, 0, eris.Wrapf(err, "evidence: search %q", lead.Query)
	}

	bundle.Answer = resp.Answer
	bundle.SearchedAt = time.Now().UTC()
	for _, r := range resp.Results {
		bundle.Results = append(bundle.Results, model.SearchResult{
			Title:     r.Title,
			URL:       r.URL,
			Content:   r.Content,
			Score:     r.Score,
			Published: r.PublishedDate,
		})
	}

	return bundle, s.calc.TavilySearch(), nil
}

// tavilyRetryable retries transient HTTP statuses and transport errors.
func tavilyRetryable(err error) bool {
	var se *tavily.StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.Code)
	}
	return resilience.IsTransient(err)
}
