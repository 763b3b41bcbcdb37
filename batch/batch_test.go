package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-transcript/cache"
	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/transcription"
)

type fetcherFunc func(ctx context.Context, videoID string, opts transcription.FetchOptions) (*models.Transcript, error)

func (f fetcherFunc) Fetch(ctx context.Context, videoID string, opts transcription.FetchOptions) (*models.Transcript, error) {
	return f(ctx, videoID, opts)
}

// countingFetcher returns a transcript per video and records how often each
// video was requested.
type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	delay time.Duration
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{calls: make(map[string]int), fail: make(map[string]error)}
}

func (f *countingFetcher) Fetch(ctx context.Context, videoID string, opts transcription.FetchOptions) (*models.Transcript, error) {
	f.mu.Lock()
	f.calls[videoID]++
	err := f.fail[videoID]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err != nil {
		return nil, err
	}
	return &models.Transcript{VideoID: videoID, Text: "transcript of " + videoID}, nil
}

func (f *countingFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func writeBatchFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

var testIDs = []string{"dQw4w9WgXcQ", "jNQXAC9IVRw", "9bZkp7q19f0", "kJQP7kiw5Fk", "OPf0YbXqDm0"}

func TestRun_DuplicateScenario(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := cache.NewFileCache(dir, nil)
	fetcher := newCountingFetcher()
	runner := NewRunner(transcription.NewService(store, fetcher, nil), Config{CostPerVideo: 0.007}, nil)

	path := writeBatchFile(t,
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/jNQXAC9IVRw",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42",
	)

	summary, err := runner.Run(ctx, path, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 1, summary.Cached)
	assert.Equal(t, 0, summary.Failed)
	assert.InDelta(t, 0.014, summary.EstimatedCost, 1e-9)
	assert.Equal(t, 1, fetcher.calls["dQw4w9WgXcQ"])

	matches, err := filepath.Glob(filepath.Join(dir, "dQw4w9WgXcQ*"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	require.Len(t, summary.Results, 3)
	assert.Equal(t, transcription.SourceAPI, summary.Results[0].Source)
	assert.Equal(t, transcription.SourceAPI, summary.Results[1].Source)
	assert.Equal(t, transcription.SourceDuplicate, summary.Results[2].Source)
	assert.Equal(t, "transcript of dQw4w9WgXcQ", summary.Results[2].Transcript.PlainText())
}

func TestRunLines_PartiallyCached(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCache()
	for _, id := range testIDs[:2] {
		require.NoError(t, store.Store(ctx, models.CacheEntry{
			VideoID:    id,
			Transcript: models.Transcript{VideoID: id, Text: "cached"},
		}))
	}
	fetcher := newCountingFetcher()
	runner := NewRunner(transcription.NewService(store, fetcher, nil), Config{CostPerVideo: 0.007}, nil)

	var lines []string
	for _, id := range testIDs {
		lines = append(lines, "https://youtu.be/"+id)
	}
	summary := runner.RunLines(ctx, lines, Options{})

	assert.Equal(t, len(testIDs), summary.Total)
	assert.Equal(t, 2, summary.Cached)
	assert.Equal(t, len(testIDs)-2, summary.Fetched)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, len(testIDs)-2, fetcher.total())
	assert.False(t, summary.AllFailed())
}

func TestRunLines_InvalidLineContinues(t *testing.T) {
	fetcher := newCountingFetcher()
	runner := NewRunner(transcription.NewService(cache.NewMemoryCache(), fetcher, nil), Config{}, nil)

	summary := runner.RunLines(context.Background(), []string{
		"not a url",
		"",
		"# comment",
		"https://youtu.be/dQw4w9WgXcQ",
	}, Options{})

	require.Len(t, summary.Results, 2)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Fetched)

	assert.Equal(t, 1, summary.Results[0].Line)
	assert.True(t, errors.IsInvalidURL(summary.Results[0].Err))
	assert.Equal(t, 4, summary.Results[1].Line)
	assert.NoError(t, summary.Results[1].Err)
}

func TestRunLines_FetchFailureContinues(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.fail["jNQXAC9IVRw"] = errors.NotFound("test", nil, "no captions")
	runner := NewRunner(transcription.NewService(cache.NewMemoryCache(), fetcher, nil), Config{CostPerVideo: 1}, nil)

	summary := runner.RunLines(context.Background(), []string{
		"https://youtu.be/jNQXAC9IVRw",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://youtu.be/jNQXAC9IVRw",
	}, Options{})

	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.Fetched)
	assert.InDelta(t, 1.0, summary.EstimatedCost, 1e-9)
	assert.True(t, errors.IsNotFound(summary.Results[2].Err))
	assert.Equal(t, 1, fetcher.calls["jNQXAC9IVRw"])
}

func TestRunLines_PreservesOrderWithConcurrency(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.delay = 10 * time.Millisecond
	runner := NewRunner(transcription.NewService(cache.NewMemoryCache(), fetcher, nil), Config{Concurrency: 4}, nil)

	var lines []string
	for _, id := range testIDs {
		lines = append(lines, "https://www.youtube.com/watch?v="+id)
	}

	var mu sync.Mutex
	progress := 0
	summary := runner.RunLines(context.Background(), lines, Options{
		Progress: func(LineResult) {
			mu.Lock()
			progress++
			mu.Unlock()
		},
	})

	require.Len(t, summary.Results, len(testIDs))
	for i, res := range summary.Results {
		assert.Equal(t, testIDs[i], res.VideoID)
		assert.Equal(t, i+1, res.Line)
	}
	assert.Equal(t, len(testIDs), progress)
}

func TestRunLines_NoCache(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCache()
	require.NoError(t, store.Store(ctx, models.CacheEntry{VideoID: "dQw4w9WgXcQ", Transcript: models.Transcript{Text: "old"}}))
	fetcher := newCountingFetcher()
	runner := NewRunner(transcription.NewService(store, fetcher, nil), Config{}, nil)

	summary := runner.RunLines(ctx, []string{"dQw4w9WgXcQ", "jNQXAC9IVRw"}, Options{NoCache: true})

	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 0, summary.Cached)
	_, ok := store.Lookup(ctx, "jNQXAC9IVRw")
	assert.False(t, ok)
}

func TestRunLines_AllFailed(t *testing.T) {
	runner := NewRunner(transcription.NewService(nil, fetcherFunc(func(context.Context, string, transcription.FetchOptions) (*models.Transcript, error) {
		return nil, errors.Upstream("test", nil, "down")
	}), nil), Config{}, nil)

	summary := runner.RunLines(context.Background(), []string{"dQw4w9WgXcQ", "bogus"}, Options{})
	assert.True(t, summary.AllFailed())

	empty := runner.RunLines(context.Background(), []string{"", "# nothing"}, Options{})
	assert.Equal(t, 0, empty.Total)
	assert.False(t, empty.AllFailed())
}

func TestRunLines_CanceledContext(t *testing.T) {
	fetcher := newCountingFetcher()
	runner := NewRunner(transcription.NewService(nil, fetcher, nil), Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := runner.RunLines(ctx, []string{"dQw4w9WgXcQ"}, Options{})
	assert.Equal(t, 1, summary.Failed)
	assert.ErrorIs(t, summary.Results[0].Err, context.Canceled)
	assert.Equal(t, 0, fetcher.total())
}

func TestRun_MissingFile(t *testing.T) {
	runner := NewRunner(transcription.NewService(nil, newCountingFetcher(), nil), Config{}, nil)
	_, err := runner.Run(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), Options{})
	assert.Error(t, err)
}

func TestReadLines(t *testing.T) {
	path := writeBatchFile(t, "a", "", "  b  ")
	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "", "  b  "}, lines)
}
