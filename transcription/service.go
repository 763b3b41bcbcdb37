package transcription

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcript/cache"
	"github.com/nijaru/yt-transcript/logger"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/validation"
)

// Source tells where a result's transcript came from.
type Source string

const (
	SourceCache     Source = "cache"
	SourceAPI       Source = "api"
	SourceDuplicate Source = "duplicate"
)

type Options struct {
	NoCache  bool   // skip both lookup and store
	Language string // preferred language; a cached entry for another language is a miss
}

type Result struct {
	VideoID    string
	Transcript *models.Transcript
	Source     Source
	// CacheErr is set when the transcript was fetched but could not be
	// stored. The transcript is still valid.
	CacheErr error
}

type videoLock struct {
	mu sync.Mutex
}

// Service resolves URLs to transcripts, serving from the cache when
// possible. Calls for the same video are serialized so a video is fetched
// and stored at most once even under concurrent use.
type Service struct {
	cache   cache.Cache
	fetcher Fetcher
	logger  logrus.FieldLogger
	now     func() time.Time
	locks   sync.Map
}

func NewService(c cache.Cache, fetcher Fetcher, log logrus.FieldLogger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		cache:   c,
		fetcher: fetcher,
		logger:  log,
		now:     time.Now,
	}
}

func (s *Service) lockFor(videoID string) *videoLock {
	lock, _ := s.locks.LoadOrStore(videoID, &videoLock{})
	return lock.(*videoLock)
}

// Get extracts the video ID from rawURL and returns its transcript.
func (s *Service) Get(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	videoID, err := validation.ExtractVideoID(rawURL)
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, videoID, opts)
}

func (s *Service) GetByID(ctx context.Context, videoID string, opts Options) (*Result, error) {
	log := s.logger.WithFields(logrus.Fields{
		"video_id": videoID,
		"no_cache": opts.NoCache,
		"language": opts.Language,
	})

	lock := s.lockFor(videoID)
	lock.mu.Lock()
	defer lock.mu.Unlock()

	if !opts.NoCache {
		if entry, ok := s.cache.Lookup(ctx, videoID); ok {
			if entry.MatchesLanguage(opts.Language) {
				log.Info("Using cached transcript")
				transcript := entry.Transcript
				return &Result{VideoID: videoID, Transcript: &transcript, Source: SourceCache}, nil
			}
			log.WithField("cached_language", entry.Language).Info("Language mismatch, fetching new transcript")
		}
	}

	transcript, err := s.fetcher.Fetch(ctx, videoID, FetchOptions{Language: opts.Language})
	if err != nil {
		log.WithError(err).Error("Failed to fetch transcript")
		return nil, err
	}

	result := &Result{VideoID: videoID, Transcript: transcript, Source: SourceAPI}
	if opts.NoCache {
		return result, nil
	}

	entry := models.CacheEntry{
		VideoID:    videoID,
		Language:   opts.Language,
		FetchedAt:  s.now().UTC(),
		Transcript: *transcript,
	}
	if err := s.cache.Store(ctx, entry); err != nil {
		log.WithError(err).Error("Failed to store transcript in cache")
		result.CacheErr = err
		return result, nil
	}

	log.Info("Transcript cached")
	return result, nil
}
