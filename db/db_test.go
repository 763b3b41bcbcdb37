package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-transcript/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), FileName), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testEntry(id string) models.CacheEntry {
	return models.CacheEntry{
		VideoID:   id,
		Language:  "de",
		FetchedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Transcript: models.Transcript{
			VideoID: id,
			Title:   "Example",
			Segments: []models.Segment{
				{Start: 0, Duration: 1.25, Text: "hallo"},
			},
		},
	}
}

func TestStoreAndLookup(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, ok := store.Lookup(ctx, "dQw4w9WgXcQ")
	assert.False(t, ok)

	want := testEntry("dQw4w9WgXcQ")
	require.NoError(t, store.Store(ctx, want))

	got, ok := store.Lookup(ctx, "dQw4w9WgXcQ")
	require.True(t, ok)
	assert.Equal(t, want.VideoID, got.VideoID)
	assert.Equal(t, want.Language, got.Language)
	assert.Equal(t, want.Transcript, got.Transcript)
	assert.True(t, want.FetchedAt.Equal(got.FetchedAt))
}

func TestStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	entry := testEntry("dQw4w9WgXcQ")
	require.NoError(t, store.Store(ctx, entry))
	entry.Transcript.Title = "Changed"
	require.NoError(t, store.Store(ctx, entry))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)

	got, ok := store.Lookup(ctx, "dQw4w9WgXcQ")
	require.True(t, ok)
	assert.Equal(t, "Changed", got.Transcript.Title)
}

func TestStatsAndClear(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, int64(0), stats.TotalBytes)

	require.NoError(t, store.Store(ctx, testEntry("aaaaaaaaaaa")))
	require.NoError(t, store.Store(ctx, testEntry("bbbbbbbbbbb")))

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.Greater(t, stats.TotalBytes, int64(0))

	result, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Entries)
}

func TestCorruptPayloadIsMiss(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.db.ExecContext(ctx,
		"INSERT INTO transcripts (video_id, language, payload, fetched_at) VALUES (?, '', ?, ?)",
		"dQw4w9WgXcQ", []byte("{broken"), time.Now().UTC())
	require.NoError(t, err)

	_, ok := store.Lookup(ctx, "dQw4w9WgXcQ")
	assert.False(t, ok)
}

func TestEmptyKeyRejected(t *testing.T) {
	err := openTestStore(t).Store(context.Background(), testEntry(""))
	assert.Error(t, err)
}

func TestOpen_Error(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))

	_, err := Open(filepath.Join(parent, FileName), nil)
	assert.Error(t, err)
}
