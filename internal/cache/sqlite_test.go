package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteBackend(t *testing.T) *SQLiteBackend {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	b, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() }) //nolint:errcheck
	require.NoError(t, b.Migrate(context.Background()))
	return b
}

func TestSQLiteBackend_PutAndGet(t *testing.T) {
	b := newTestSQLiteBackend(t)
	ctx := context.Background()

	err := b.Put(ctx, NamespaceEvidence, "key123", []byte("search results"), time.Hour)
	require.NoError(t, err)

	data, err := b.Get(ctx, NamespaceEvidence, "key123")
	require.NoError(t, err)
	assert.Equal(t, "search results", string(data))
}

func TestSQLiteBackend_Missing(t *testing.T) {
	b := newTestSQLiteBackend(t)
	ctx := context.Background()

	data, err := b.Get(ctx, NamespaceEvidence, "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLiteBackend_SameKeyDifferentNamespace(t *testing.T) {
	b := newTestSQLiteBackend(t)
	ctx := context.Background()

	err := b.Put(ctx, NamespaceLeads, "shared", []byte("leads"), time.Hour)
	require.NoError(t, err)

	data, err := b.Get(ctx, NamespaceEvidence, "shared")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLiteBackend_Expired(t *testing.T) {
	b := newTestSQLiteBackend(t)
	ctx := context.Background()

	// Set with already-expired TTL (-1 hour in the past).
	err := b.Put(ctx, NamespaceEvidence, "expired-key", []byte("old data"), -1*time.Hour)
	require.NoError(t, err)

	data, err := b.Get(ctx, NamespaceEvidence, "expired-key")
	require.NoError(t, err)
	assert.Nil(t, data) // never served once expired
}

func TestSQLiteBackend_Overwrite(t *testing.T) {
	b := newTestSQLiteBackend(t)
	ctx := context.Background()

	err := b.Put(ctx, NamespaceScoring, "key-ow", []byte("original"), time.Hour)
	require.NoError(t, err)

	err = b.Put(ctx, NamespaceScoring, "key-ow", []byte("updated"), time.Hour)
	require.NoError(t, err)

	data, err := b.Get(ctx, NamespaceScoring, "key-ow")
	require.NoError(t, err)
	assert.Equal(t, "updated", string(data))
}

func TestSQLiteBackend_OverwriteRevivesExpired(t *testing.T) {
	b := newTestSQLiteBackend(t)
	ctx := context.Background()

	err := b.Put(ctx, NamespaceScoring, "key-rv", []byte("stale"), -1*time.Hour)
	require.NoError(t, err)

	err = b.Put(ctx, NamespaceScoring, "key-rv", []byte("fresh"), time.Hour)
	require.NoError(t, err)

	data, err := b.Get(ctx, NamespaceScoring, "key-rv")
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestSQLiteBackend_PurgeExpired(t *testing.T) {
	b := newTestSQLiteBackend(t)
	ctx := context.Background()

	// One expired and one fresh entry.
	err := b.Put(ctx, NamespaceEvidence, "dead", []byte("a"), -1*time.Hour)
	require.NoError(t, err)
	err = b.Put(ctx, NamespaceEvidence, "alive", []byte("b"), time.Hour)
	require.NoError(t, err)

	removed, err := b.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// Fresh entry survives.
	data, err := b.Get(ctx, NamespaceEvidence, "alive")
	require.NoError(t, err)
	assert.NotNil(t, data)

	// Second purge finds nothing.
	removed, err = b.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestSQLiteBackend_Stats(t *testing.T) {
	b := newTestSQLiteBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, NamespaceEvidence, "e1", []byte("x"), time.Hour))
	require.NoError(t, b.Put(ctx, NamespaceEvidence, "e2", []byte("x"), -time.Hour))
	require.NoError(t, b.Put(ctx, NamespaceLeads, "l1", []byte("x"), time.Hour))

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, NamespaceEvidence, stats[0].Namespace)
	assert.Equal(t, 1, stats[0].Live)
	assert.Equal(t, 1, stats[0].Expired)
	assert.Equal(t, NamespaceLeads, stats[1].Namespace)
	assert.Equal(t, 1, stats[1].Live)
}

func TestSQLiteBackend_Migrate_Idempotent(t *testing.T) {
	b := newTestSQLiteBackend(t)
	require.NoError(t, b.Migrate(context.Background()))
}
