package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nijaru/yt-transcript/cache"
	"github.com/nijaru/yt-transcript/config"
	"github.com/nijaru/yt-transcript/db"
	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/logger"
	"github.com/nijaru/yt-transcript/middleware"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/storage"
	"github.com/nijaru/yt-transcript/transcription"
)

// app holds everything one invocation needs.
type app struct {
	cfg     *config.Config
	opts    *options
	log     *logrus.Logger
	cache   cache.Cache
	service *transcription.Service
	closers []func() error
}

func newApp(cmd *cobra.Command, opts *options) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Batch.Concurrency = opts.concurrency
	}

	log, err := logger.NewLogger(logger.Config{
		Level:  cfg.LogLevel,
		LogDir: cfg.LogDir,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, opts: opts, log: log}

	// --no-cache leaves the cache directory untouched; management modes
	// always need the real cache.
	if opts.noCache && !opts.cacheStats && !opts.clearCache {
		a.cache = cache.Nop{}
	} else {
		c, closeFn, err := openCache(cmd.Context(), cfg, opts.cacheStats, log)
		if err != nil {
			return nil, err
		}
		a.cache = c
		a.closers = append(a.closers, closeFn)
	}

	fetcher, err := newFetcher(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service = transcription.NewService(a.cache, fetcher, log)

	log.WithFields(logrus.Fields{
		"cache_dir": cfg.Cache.Dir,
		"backend":   cfg.Cache.Backend,
		"no_cache":  opts.noCache,
	}).Debug("Configuration loaded")
	return a, nil
}

func (a *app) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.log.WithError(err).Warn("Failed to close cache")
		}
	}
	a.closers = nil
}

// openCache builds the configured backend. With statsOnly set, a SQLite
// database that does not exist yet is reported as empty instead of created.
func openCache(ctx context.Context, cfg *config.Config, statsOnly bool, log logrus.FieldLogger) (cache.Cache, func() error, error) {
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		path := filepath.Join(cfg.Cache.Dir, db.FileName)
		if statsOnly {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				log.WithField("path", path).Debug("Cache database not created yet")
				return emptyCache{location: path}, func() error { return nil }, nil
			}
		}
		store, err := db.Open(path, log)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.BackendSpaces:
		spaces := cfg.Cache.Spaces
		c, err := storage.NewSpacesCache(ctx, storage.SpacesConfig{
			AccessKey: spaces.AccessKey,
			SecretKey: spaces.SecretKey,
			Region:    spaces.Region,
			Endpoint:  spaces.Endpoint,
			Bucket:    spaces.Bucket,
			Prefix:    spaces.Prefix,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return c, func() error { return nil }, nil
	default:
		return cache.NewFileCache(cfg.Cache.Dir, log), func() error { return nil }, nil
	}
}

// newFetcher builds the API client. Without a token, cached transcripts
// still work and only an actual fetch fails.
func newFetcher(cfg *config.Config, log logrus.FieldLogger) (transcription.Fetcher, error) {
	if err := cfg.RequireToken(); err != nil {
		return missingToken{err: err}, nil
	}

	every := cfg.API.RateLimitInterval / time.Duration(cfg.API.RateLimit)
	limiter := rate.NewLimiter(rate.Every(every), cfg.API.RateLimit)

	return transcription.NewClient(transcription.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		ActorID: cfg.API.ActorID,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
		Transport: middleware.Chain(http.DefaultTransport,
			middleware.RateLimit(limiter),
			middleware.Logging(log),
		),
		Logger: log,
	})
}

// emptyCache reports zero entries at a location that holds no cache yet.
type emptyCache struct {
	cache.Nop
	location string
}

func (c emptyCache) Stats(context.Context) (cache.Stats, error) {
	return cache.Stats{Location: c.location}, nil
}

type missingToken struct {
	err error
}

func (m missingToken) Fetch(context.Context, string, transcription.FetchOptions) (*models.Transcript, error) {
	return nil, errors.Auth("missingToken.Fetch", m.err, "cannot fetch transcript")
}
