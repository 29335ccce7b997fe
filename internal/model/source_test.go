package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceRegistry(t *testing.T) {
	t.Parallel()

	sources := []TrustedSource{
		{Name: "City Press Office", Domain: "https://www.chicago.gov/press/releases", Tags: []string{"Politics"}, Reliability: 90},
		{Name: "Block Club", Domain: "blockclubchicago.org", Tags: []string{"politics", "Community"}, Reliability: 80},
		{Name: "Eventbrite", Domain: "www.eventbrite.com:443", Tags: []string{"festivals"}, Reliability: 40},
		{Name: "Broken", Domain: "", Reliability: 99},
	}

	reg := NewSourceRegistry(sources)

	t.Run("ByDomain normalizes the lookup", func(t *testing.T) {
		t.Parallel()
		s := reg.ByDomain("https://chicago.gov/anything")
		require.NotNil(t, s)
		assert.Equal(t, "City Press Office", s.Name)
	})

	t.Run("ByDomain returns nil for unknown domain", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, reg.ByDomain("nytimes.com"))
	})

	t.Run("stored domains are normalized", func(t *testing.T) {
		t.Parallel()
		assert.NotNil(t, reg.ByDomain("eventbrite.com"))
	})

	t.Run("tags are lowercased", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"blockclubchicago.org"}, reg.DomainsFor([]string{"community"}))
	})

	t.Run("DomainsFor orders by reliability", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t,
			[]string{"chicago.gov", "blockclubchicago.org"},
			reg.DomainsFor([]string{"politics"}),
		)
	})

	t.Run("DomainsFor dedupes multi-tag matches", func(t *testing.T) {
		t.Parallel()
		domains := reg.DomainsFor([]string{"politics", "community"})
		assert.Equal(t, []string{"chicago.gov", "blockclubchicago.org"}, domains)
	})

	t.Run("DomainsFor falls back to all domains", func(t *testing.T) {
		t.Parallel()
		domains := reg.DomainsFor([]string{"sports"})
		assert.Equal(t, []string{"chicago.gov", "blockclubchicago.org", "eventbrite.com"}, domains)
	})

	t.Run("empty interests fall back to all domains", func(t *testing.T) {
		t.Parallel()
		assert.Len(t, reg.DomainsFor(nil), 3)
	})

	t.Run("sources without a domain are unindexed", func(t *testing.T) {
		t.Parallel()
		assert.Len(t, reg.Domains(), 3)
	})
}

func TestNewSourceRegistryEmpty(t *testing.T) {
	t.Parallel()
	reg := NewSourceRegistry(nil)
	assert.NotNil(t, reg)
	assert.Empty(t, reg.Sources)
	assert.Nil(t, reg.ByDomain("anything.com"))
	assert.Empty(t, reg.Domains())
}

func TestNormalizeDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare domain", "reuters.com", "reuters.com"},
		{"scheme stripped", "https://reuters.com", "reuters.com"},
		{"www stripped", "www.reuters.com", "reuters.com"},
		{"path stripped", "reuters.com/world/us", "reuters.com"},
		{"port stripped", "reuters.com:8443", "reuters.com"},
		{"query stripped", "reuters.com?ref=home", "reuters.com"},
		{"uppercase folded", "Reuters.COM", "reuters.com"},
		{"whitespace trimmed", "  reuters.com  ", "reuters.com"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeDomain(tt.in))
		})
	}
}
