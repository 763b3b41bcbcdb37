package cache

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
)

// MemoryCache keeps entries in process memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
	writes  map[string]int
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]models.CacheEntry),
		writes:  make(map[string]int),
	}
}

func (c *MemoryCache) Lookup(_ context.Context, videoID string) (*models.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[videoID]
	if !ok {
		return nil, false
	}
	return &entry, true
}

func (c *MemoryCache) Store(_ context.Context, entry models.CacheEntry) error {
	if entry.VideoID == "" {
		return errors.CacheWrite("MemoryCache.Store", nil, "video ID cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entry.VideoID] = entry
	c.writes[entry.VideoID]++
	return nil
}

func (c *MemoryCache) Stats(context.Context) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{Entries: len(c.entries), Location: "memory"}
	for _, entry := range c.entries {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		stats.TotalBytes += int64(len(data))
	}
	return stats, nil
}

func (c *MemoryCache) Clear(context.Context) (ClearResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]models.CacheEntry)
	return ClearResult{Deleted: n}, nil
}

// Writes returns how many times videoID has been stored.
func (c *MemoryCache) Writes(videoID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writes[videoID]
}
