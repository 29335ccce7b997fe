package model

import (
	"sort"
	"strings"
)

// TrustedSource is a publisher from the source registry. Its domain feeds
// the evidence search as an include filter.
type TrustedSource struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Domain      string   `json:"domain"`
	Tags        []string `json:"tags,omitempty"`
	Reliability int      `json:"reliability"`
}

// SourceRegistry is an indexed collection of trusted sources.
type SourceRegistry struct {
	Sources  []TrustedSource
	byDomain map[string]*TrustedSource
	byTag    map[string][]*TrustedSource
}

// NewSourceRegistry creates a SourceRegistry with indexed lookups.
// Domains are normalized to bare hostnames and tags to lower case.
// Sources without a usable domain are dropped from the indexes.
func NewSourceRegistry(sources []TrustedSource) *SourceRegistry {
	r := &SourceRegistry{
		Sources:  sources,
		byDomain: make(map[string]*TrustedSource, len(sources)),
		byTag:    make(map[string][]*TrustedSource),
	}
	for i := range r.Sources {
		s := &r.Sources[i]
		s.Domain = NormalizeDomain(s.Domain)
		if s.Domain == "" {
			continue
		}
		r.byDomain[s.Domain] = s
		for j, tag := range s.Tags {
			tag = strings.ToLower(strings.TrimSpace(tag))
			s.Tags[j] = tag
			if tag == "" {
				continue
			}
			r.byTag[tag] = append(r.byTag[tag], s)
		}
	}
	return r
}

// ByDomain returns the source registered for the given domain or URL, or
// nil if not found.
func (r *SourceRegistry) ByDomain(domain string) *TrustedSource {
	return r.byDomain[NormalizeDomain(domain)]
}

// Domains returns every registered domain, most reliable first.
func (r *SourceRegistry) Domains() []string {
	all := make([]*TrustedSource, 0, len(r.byDomain))
	for _, s := range r.byDomain {
		all = append(all, s)
	}
	return domainsOf(all)
}

// DomainsFor returns the domains of sources tagged with any of the given
// interests, most reliable first. With no interests, or none matching,
// it falls back to every registered domain.
func (r *SourceRegistry) DomainsFor(interests []string) []string {
	seen := make(map[string]bool)
	var matched []*TrustedSource
	for _, interest := range interests {
		for _, s := range r.byTag[strings.ToLower(strings.TrimSpace(interest))] {
			if seen[s.Domain] {
				continue
			}
			seen[s.Domain] = true
			matched = append(matched, s)
		}
	}
	if len(matched) == 0 {
		return r.Domains()
	}
	return domainsOf(matched)
}

// domainsOf sorts sources by reliability descending, ties broken by
// domain, and returns their domains.
func domainsOf(sources []*TrustedSource) []string {
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Reliability != sources[j].Reliability {
			return sources[i].Reliability > sources[j].Reliability
		}
		return sources[i].Domain < sources[j].Domain
	})
	domains := make([]string, len(sources))
	for i, s := range sources {
		domains[i] = s.Domain
	}
	return domains
}

// NormalizeDomain strips protocol, www prefix, path, and port from a
// domain or URL string.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.IndexByte(d, ':'); i >= 0 {
		d = d[:i]
	}
	return d
}
