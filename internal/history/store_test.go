// ABOUTME: Tests for the SQLite operation journal.
// ABOUTME: Covers recording, filtering, ordering and summaries.
package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestRecordAndQueryNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, Entry{Command: "push", Organisation: "acme", Repository: "main", Subject: "a.nupkg", Succeeded: true, At: base}))
	require.NoError(t, store.Record(ctx, Entry{Command: "download", Organisation: "acme", Repository: "main", Subject: "a", Version: "1.0.0", Message: "boom", At: base.Add(time.Hour)}))

	entries, err := store.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "download", entries[0].Command)
	assert.Equal(t, "1.0.0", entries[0].Version)
	assert.False(t, entries[0].Succeeded)
	assert.Equal(t, "boom", entries[0].Message)
	assert.True(t, entries[0].At.Equal(base.Add(time.Hour)))

	assert.Equal(t, "push", entries[1].Command)
	assert.True(t, entries[1].Succeeded)
}

func TestQueryFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, cmd := range []string{"push", "push", "list", "download"} {
		require.NoError(t, store.Record(ctx, Entry{
			Command:      cmd,
			Organisation: "acme",
			Repository:   "main",
			Succeeded:    true,
			At:           base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	pushes, err := store.Query(ctx, Filter{Command: "PUSH"})
	require.NoError(t, err)
	assert.Len(t, pushes, 2)

	since := base.Add(36 * time.Hour)
	recent, err := store.Query(ctx, Filter{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "download", recent[0].Command)
	assert.Equal(t, "list", recent[1].Command)

	limited, err := store.Query(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSummarize(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	empty, err := store.Summarize(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Nil(t, empty.Last)

	at := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, Entry{Command: "push", Organisation: "o", Repository: "r", Succeeded: true, At: at.Add(-time.Minute)}))
	require.NoError(t, store.Record(ctx, Entry{Command: "push", Organisation: "o", Repository: "r", At: at}))

	sum, err := store.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Failed)
	require.NotNil(t, sum.Last)
	assert.True(t, sum.Last.Equal(at))
}

func TestNilStore(t *testing.T) {
	var store *Store
	assert.NoError(t, store.Close())
	assert.Error(t, store.Record(context.Background(), Entry{}))
	_, err := store.Query(context.Background(), Filter{})
	assert.Error(t, err)
}
