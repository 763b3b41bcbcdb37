package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config is read from the environment. A .env file in the working directory
// is loaded first without overriding variables that are already set.
//
// Environment Variables:
// - APIFY_API_TOKEN: bearer token for the transcription API (required to fetch)
// - APIFY_API_BASE: API base URL (default: https://api.apify.com/v2)
// - APIFY_ACTOR_ID: transcript actor (default: karamelo~youtube-transcripts)
// - YT_TRANSCRIPT_CACHE_DIR: cache directory (default: .cache next to the binary)
// - YT_TRANSCRIPT_CACHE_BACKEND: "file", "sqlite" or "spaces" (default: file)
// - YT_TRANSCRIPT_SPACES_BUCKET: bucket for the spaces backend
// - YT_TRANSCRIPT_SPACES_ENDPOINT: S3 compatible endpoint (default: AWS)
// - YT_TRANSCRIPT_SPACES_REGION: bucket region (default: us-east-1)
// - YT_TRANSCRIPT_SPACES_PREFIX: key prefix (default: transcripts/)
// - YT_TRANSCRIPT_SPACES_ACCESS_KEY / YT_TRANSCRIPT_SPACES_SECRET_KEY: static
//   credentials, otherwise the default AWS credential chain is used
// - YT_TRANSCRIPT_TIMEOUT: per request timeout (default: 120s)
// - YT_TRANSCRIPT_CONCURRENCY: parallel fetches in batch mode (default: 1)
// - YT_TRANSCRIPT_RATE_LIMIT: requests allowed per interval (default: 5)
// - YT_TRANSCRIPT_RATE_LIMIT_INTERVAL: rate limit interval (default: 1s)
// - YT_TRANSCRIPT_COST_PER_VIDEO: estimated USD per fetched video (default: 0.007)
// - YT_TRANSCRIPT_LOG_DIR: also write logs to a rotated file here (default: off)
// - YT_TRANSCRIPT_LOG_LEVEL: logrus level (default: warn)
type Config struct {
	API   APIConfig
	Cache CacheConfig
	Batch BatchConfig

	LogDir   string
	LogLevel string
}

type APIConfig struct {
	Token             string
	BaseURL           string
	ActorID           string
	Timeout           time.Duration
	RateLimit         int
	RateLimitInterval time.Duration
}

type CacheConfig struct {
	Dir     string
	Backend string
	Spaces  SpacesConfig
}

type SpacesConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
}

type BatchConfig struct {
	Concurrency  int
	CostPerVideo float64
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendSpaces = "spaces"

	DefaultBaseURL      = "https://api.apify.com/v2"
	DefaultActorID      = "karamelo~youtube-transcripts"
	DefaultCostPerVideo = 0.007
	cacheDirName        = ".cache"
)

func Load() (*Config, error) {
	// missing .env is the common case
	_ = godotenv.Load()

	cfg := &Config{
		API: APIConfig{
			Token:             strings.TrimSpace(getEnv("APIFY_API_TOKEN", "")),
			BaseURL:           strings.TrimRight(getEnv("APIFY_API_BASE", DefaultBaseURL), "/"),
			ActorID:           getEnv("APIFY_ACTOR_ID", DefaultActorID),
			Timeout:           getEnvAsDuration("YT_TRANSCRIPT_TIMEOUT", 120*time.Second),
			RateLimit:         getEnvAsInt("YT_TRANSCRIPT_RATE_LIMIT", 5),
			RateLimitInterval: getEnvAsDuration("YT_TRANSCRIPT_RATE_LIMIT_INTERVAL", 1*time.Second),
		},
		Cache: CacheConfig{
			Dir:     getEnv("YT_TRANSCRIPT_CACHE_DIR", DefaultCacheDir()),
			Backend: strings.ToLower(getEnv("YT_TRANSCRIPT_CACHE_BACKEND", BackendFile)),
			Spaces: SpacesConfig{
				Bucket:    getEnv("YT_TRANSCRIPT_SPACES_BUCKET", ""),
				Endpoint:  getEnv("YT_TRANSCRIPT_SPACES_ENDPOINT", ""),
				Region:    getEnv("YT_TRANSCRIPT_SPACES_REGION", "us-east-1"),
				Prefix:    getEnv("YT_TRANSCRIPT_SPACES_PREFIX", "transcripts/"),
				AccessKey: getEnv("YT_TRANSCRIPT_SPACES_ACCESS_KEY", ""),
				SecretKey: getEnv("YT_TRANSCRIPT_SPACES_SECRET_KEY", ""),
			},
		},
		Batch: BatchConfig{
			Concurrency:  getEnvAsInt("YT_TRANSCRIPT_CONCURRENCY", 1),
			CostPerVideo: getEnvAsFloat("YT_TRANSCRIPT_COST_PER_VIDEO", DefaultCostPerVideo),
		},
		LogDir:   getEnv("YT_TRANSCRIPT_LOG_DIR", ""),
		LogLevel: getEnv("YT_TRANSCRIPT_LOG_LEVEL", "warn"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultCacheDir is the .cache directory next to the running executable,
// or ./.cache when the executable path cannot be resolved.
func DefaultCacheDir() string {
	exe, err := os.Executable()
	if err != nil {
		return cacheDirName
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), cacheDirName)
}

func (c *Config) Validate() error {
	if c.Cache.Dir == "" {
		return errors.New("cache directory is required")
	}
	switch c.Cache.Backend {
	case BackendFile, BackendSQLite:
	case BackendSpaces:
		if c.Cache.Spaces.Bucket == "" {
			return errors.New("YT_TRANSCRIPT_SPACES_BUCKET is required for the spaces backend")
		}
	default:
		return errors.Errorf("unknown cache backend %q (want %q, %q or %q)", c.Cache.Backend, BackendFile, BackendSQLite, BackendSpaces)
	}
	if c.API.BaseURL == "" {
		return errors.New("API base URL is required")
	}
	if c.API.ActorID == "" {
		return errors.New("actor ID is required")
	}
	if c.API.Timeout <= 0 {
		return errors.New("request timeout must be greater than 0")
	}
	if c.API.RateLimit <= 0 {
		return errors.New("rate limit must be greater than 0")
	}
	if c.API.RateLimitInterval <= 0 {
		return errors.New("rate limit interval must be greater than 0")
	}
	if c.Batch.Concurrency <= 0 {
		return errors.New("concurrency must be greater than 0")
	}
	if c.Batch.CostPerVideo < 0 {
		return errors.New("cost per video cannot be negative")
	}
	return nil
}

// RequireToken reports a setup error when no API token is configured.
func (c *Config) RequireToken() error {
	if c.API.Token == "" {
		return errors.New("APIFY_API_TOKEN environment variable not set\n\n" +
			"Setup instructions:\n" +
			"1. Create free account: https://apify.com/\n" +
			"2. Get API token: https://console.apify.com/account/integrations\n" +
			"3. Export: export APIFY_API_TOKEN='apify_api_YOUR_TOKEN'")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid number, using default")
	}
	return defaultValue
}
