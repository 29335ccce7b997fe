package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
)

// Cache namespaces, one per pipeline stage. Each carries its own TTL.
const (
	NamespaceStrategy = "strategy"
	NamespaceLeads    = "leads"
	NamespaceEvidence = "evidence"
	NamespaceScoring  = "scoring"
)

// Key derives the content address for a namespace and parameter set.
// encoding/json writes map keys in sorted order, so logically equal
// parameter sets hash identically no matter how they were assembled.
func Key(namespace string, params map[string]any) (string, error) {
	canonical, err := json.Marshal(params)
	if err != nil {
		return "", eris.Wrapf(err, "cache: marshal params for %s", namespace)
	}
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write(canonical)
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// shortKey trims a key for log output.
func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
