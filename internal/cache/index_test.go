package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndex_RecordAndList(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	link := "file:///srv/sdists/mypkg-1.0.tar.gz"
	key := KeyForLink(link)
	require.NoError(t, idx.Record(ctx, link, key, "/cache/aa/bb/mypkg-1.0-py3-none-any.whl"))

	entries, err := idx.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, link, entries[0].Link)
	assert.Equal(t, key, entries[0].CacheKey)
	assert.Contains(t, entries[0].Wheel, ".whl")
	assert.WithinDuration(t, time.Now(), entries[0].CreatedAt, time.Minute)
}

func TestIndex_RecordReplacesSameKey(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	link := "file:///srv/sdists/mypkg-1.0.tar.gz"
	key := KeyForLink(link)
	require.NoError(t, idx.Record(ctx, link, key, "/cache/x/old.whl"))
	require.NoError(t, idx.Record(ctx, link, key, "/cache/x/new.whl"))

	entries, err := idx.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/cache/x/new.whl", entries[0].Wheel)
}

func TestIndex_Prune(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Record(ctx, "file:///a.tar.gz", KeyForLink("file:///a.tar.gz"), "/cache/a.whl"))
	require.NoError(t, idx.Record(ctx, "file:///b.tar.gz", KeyForLink("file:///b.tar.gz"), "/cache/b.whl"))

	// Nothing is older than an hour ago
	removed, err := idx.Prune(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, removed)

	// Everything is older than an hour from now
	removed, err = idx.Prune(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	entries, err := idx.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIndex_PersistsToFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	idx, err := NewIndex(dbPath)
	require.NoError(t, err)
	require.NoError(t, idx.Record(ctx, "file:///a.tar.gz", KeyForLink("file:///a.tar.gz"), "/cache/a.whl"))
	require.NoError(t, idx.Close())

	reopened, err := NewIndex(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	entries, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
