package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryBackend keeps cache entries in process memory. Used when no cache
// path is configured and as the fixture backend in tests. Safe for use
// from multiple goroutines.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[memoryKey]memoryEntry
	now     func() time.Time
}

type memoryKey struct {
	namespace string
	key       string
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[memoryKey]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryBackend) Migrate(ctx context.Context) error { return nil }
func (m *MemoryBackend) Close() error                      { return nil }

func (m *MemoryBackend) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[memoryKey{namespace, key}]
	if !ok || !m.now().Before(e.expiresAt) {
		// Expired entries stay until PurgeExpired but are never served.
		return nil, nil
	}
	out := make([]byte, len(e.payload))
	copy(out, e.payload)
	return out, nil
}

func (m *MemoryBackend) Put(ctx context.Context, namespace, key string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(payload))
	copy(stored, payload)
	m.entries[memoryKey{namespace, key}] = memoryEntry{
		payload:   stored,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryBackend) PurgeExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryBackend) Stats(ctx context.Context) ([]NamespaceStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	byNS := make(map[string]*NamespaceStats)
	for k, e := range m.entries {
		ns, ok := byNS[k.namespace]
		if !ok {
			ns = &NamespaceStats{Namespace: k.namespace}
			byNS[k.namespace] = ns
		}
		if now.Before(e.expiresAt) {
			ns.Live++
		} else {
			ns.Expired++
		}
	}
	stats := make([]NamespaceStats, 0, len(byNS))
	for _, ns := range byNS {
		stats = append(stats, *ns)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Namespace < stats[j].Namespace })
	return stats, nil
}
