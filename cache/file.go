package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/logger"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/utils"
)

const (
	entryExt     = ".json"
	tempExt      = ".tmp"
	lockFileName = ".lock"
)

// FileCache stores one JSON file per video in a directory.
//
// Stores hold a shared flock on the directory's lock file and Clear holds it
// exclusively, so a clear running in another process never removes a file
// that is being renamed into place.
type FileCache struct {
	dir    string
	logger logrus.FieldLogger
}

func NewFileCache(dir string, log logrus.FieldLogger) *FileCache {
	if log == nil {
		log = logger.Discard()
	}
	return &FileCache{
		dir:    dir,
		logger: log.WithField("cache_dir", dir),
	}
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string {
	return c.dir
}

func (c *FileCache) path(videoID string) string {
	return filepath.Join(c.dir, videoID+entryExt)
}

func (c *FileCache) Lookup(_ context.Context, videoID string) (*models.CacheEntry, bool) {
	if !validKey(videoID) {
		return nil, false
	}
	log := c.logger.WithField("video_id", videoID)

	data, err := os.ReadFile(c.path(videoID))
	if err != nil {
		if !stderrors.Is(err, fs.ErrNotExist) {
			log.WithError(err).Warn("Failed to read cache entry, treating as miss")
		}
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.WithError(err).Warn("Corrupt cache entry, treating as miss")
		return nil, false
	}
	if entry.VideoID != videoID {
		log.WithField("stored_video_id", entry.VideoID).Warn("Cache entry key mismatch, treating as miss")
		return nil, false
	}

	log.Debug("Cache hit")
	return &entry, true
}

func (c *FileCache) Store(_ context.Context, entry models.CacheEntry) error {
	const op = "FileCache.Store"

	if !validKey(entry.VideoID) {
		return errors.CacheWrite(op, nil, fmt.Sprintf("invalid cache key %q", entry.VideoID))
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return errors.CacheWrite(op, err, "failed to create cache directory")
	}

	lock := flock.New(filepath.Join(c.dir, lockFileName))
	if err := lock.RLock(); err != nil {
		return errors.CacheWrite(op, err, "failed to lock cache directory")
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return errors.CacheWrite(op, err, "failed to encode cache entry")
	}

	if err := utils.WriteFileAtomic(c.path(entry.VideoID), data, 0o644); err != nil {
		return errors.CacheWrite(op, err, "failed to write cache entry")
	}

	c.logger.WithFields(logrus.Fields{
		"video_id": entry.VideoID,
		"bytes":    len(data),
	}).Debug("Stored cache entry")
	return nil
}

func (c *FileCache) Stats(context.Context) (Stats, error) {
	stats := Stats{Location: c.dir}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return stats, nil
		}
		return stats, fmt.Errorf("read cache directory: %w", err)
	}

	for _, e := range entries {
		if !isEntryFile(e) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		stats.Entries++
		stats.TotalBytes += info.Size()
	}
	return stats, nil
}

func (c *FileCache) Clear(context.Context) (ClearResult, error) {
	const op = "FileCache.Clear"
	var result ClearResult

	if _, err := os.Stat(c.dir); stderrors.Is(err, fs.ErrNotExist) {
		return result, nil
	}

	lock := flock.New(filepath.Join(c.dir, lockFileName))
	if err := lock.Lock(); err != nil {
		return result, errors.CacheWrite(op, err, "failed to lock cache directory")
	}
	defer lock.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return result, errors.CacheWrite(op, err, "failed to read cache directory")
	}

	var firstErr error
	for _, e := range entries {
		if e.IsDir() || !(isEntryFile(e) || strings.HasSuffix(e.Name(), tempExt)) {
			continue
		}
		name := filepath.Join(c.dir, e.Name())
		if err := os.Remove(name); err != nil {
			c.logger.WithError(err).WithField("file", name).Error("Failed to delete cache entry")
			result.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if isEntryFile(e) {
			result.Deleted++
		}
	}

	if result.Failed > 0 {
		return result, errors.CacheWrite(op, firstErr,
			fmt.Sprintf("failed to delete %d cache entries", result.Failed))
	}

	c.logger.WithField("deleted", result.Deleted).Info("Cleared cache")
	return result, nil
}

func isEntryFile(e fs.DirEntry) bool {
	name := e.Name()
	return !e.IsDir() && strings.HasSuffix(name, entryExt) && !strings.HasPrefix(name, ".")
}

func validKey(videoID string) bool {
	return videoID != "" &&
		!strings.HasPrefix(videoID, ".") &&
		!strings.ContainsAny(videoID, `/\`)
}
