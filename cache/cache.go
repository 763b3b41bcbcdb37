package cache

import (
	"context"

	"github.com/nijaru/yt-transcript/models"
)

// Cache stores fetched transcripts keyed by video ID. It is an optimization
// only: a failed or corrupt read is reported as a miss, never as an error.
type Cache interface {
	// Lookup returns the entry for videoID, or false when there is none.
	Lookup(ctx context.Context, videoID string) (*models.CacheEntry, bool)

	// Store writes or replaces the entry for entry.VideoID.
	Store(ctx context.Context, entry models.CacheEntry) error

	// Stats reports the number of entries and their total size.
	Stats(ctx context.Context) (Stats, error)

	// Clear deletes every entry, continuing past individual failures.
	Clear(ctx context.Context) (ClearResult, error)
}

type Stats struct {
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"total_bytes"`
	Location   string `json:"location,omitempty"`
}

type ClearResult struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Nop is a cache that never hits and never persists.
type Nop struct{}

func (Nop) Lookup(context.Context, string) (*models.CacheEntry, bool) { return nil, false }
func (Nop) Store(context.Context, models.CacheEntry) error            { return nil }
func (Nop) Stats(context.Context) (Stats, error)                      { return Stats{}, nil }
func (Nop) Clear(context.Context) (ClearResult, error)                { return ClearResult{}, nil }

var (
	_ Cache = Nop{}
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*FileCache)(nil)
)
