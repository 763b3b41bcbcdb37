package storage

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcript/cache"
	apperrors "github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/logger"
	"github.com/nijaru/yt-transcript/models"
)

const DefaultPrefix = "transcripts/"

type SpacesConfig struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
	Prefix    string
}

// objectAPI is the subset of *s3.Client the cache uses.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// SpacesCache keeps one JSON object per video in an S3 compatible bucket
// (DigitalOcean Spaces, MinIO, AWS S3), so several machines can share a
// cache.
type SpacesCache struct {
	client objectAPI
	bucket string
	prefix string
	logger logrus.FieldLogger
}

var _ cache.Cache = (*SpacesCache)(nil)

func NewSpacesCache(ctx context.Context, cfg SpacesConfig, log logrus.FieldLogger) (*SpacesCache, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("spaces bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newSpacesCache(client, cfg.Bucket, cfg.Prefix, log), nil
}

func newSpacesCache(client objectAPI, bucket, prefix string, log logrus.FieldLogger) *SpacesCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if log == nil {
		log = logger.Discard()
	}
	return &SpacesCache{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: log.WithField("bucket", bucket),
	}
}

func (c *SpacesCache) key(videoID string) string {
	return c.prefix + videoID + ".json"
}

func (c *SpacesCache) Lookup(ctx context.Context, videoID string) (*models.CacheEntry, bool) {
	log := c.logger.WithField("video_id", videoID)

	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(videoID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if !stderrors.As(err, &noKey) {
			log.WithError(err).Warn("Failed to read cache object, treating as miss")
		}
		return nil, false
	}
	defer result.Body.Close()

	var entry models.CacheEntry
	if err := json.NewDecoder(result.Body).Decode(&entry); err != nil {
		log.WithError(err).Warn("Corrupt cache object, treating as miss")
		return nil, false
	}
	if entry.VideoID != videoID {
		log.WithField("stored_id", entry.VideoID).Warn("Cache object key mismatch, treating as miss")
		return nil, false
	}
	return &entry, true
}

func (c *SpacesCache) Store(ctx context.Context, entry models.CacheEntry) error {
	const op = "SpacesCache.Store"
	if entry.VideoID == "" || strings.ContainsAny(entry.VideoID, "/\\") {
		return apperrors.CacheWrite(op, nil, fmt.Sprintf("invalid cache key %q", entry.VideoID))
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return apperrors.CacheWrite(op, err, "failed to encode cache entry")
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.key(entry.VideoID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return apperrors.CacheWrite(op, err, "failed to save to Spaces")
	}
	return nil
}

// each calls fn for every cache object under the prefix.
func (c *SpacesCache) each(ctx context.Context, fn func(types.Object)) error {
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			if path.Ext(aws.ToString(obj.Key)) != ".json" {
				continue
			}
			fn(obj)
		}
	}
	return nil
}

func (c *SpacesCache) Stats(ctx context.Context) (cache.Stats, error) {
	stats := cache.Stats{Location: fmt.Sprintf("s3://%s/%s", c.bucket, c.prefix)}
	err := c.each(ctx, func(obj types.Object) {
		stats.Entries++
		stats.TotalBytes += aws.ToInt64(obj.Size)
	})
	if err != nil {
		return stats, errors.Wrap(err, "failed to list cache objects")
	}
	return stats, nil
}

func (c *SpacesCache) Clear(ctx context.Context) (cache.ClearResult, error) {
	const op = "SpacesCache.Clear"

	var keys []string
	if err := c.each(ctx, func(obj types.Object) {
		keys = append(keys, aws.ToString(obj.Key))
	}); err != nil {
		return cache.ClearResult{}, apperrors.CacheWrite(op, err, "failed to list cache objects")
	}

	var result cache.ClearResult
	var lastErr error
	for _, key := range keys {
		_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Failed to delete cache object")
			result.Failed++
			lastErr = err
			continue
		}
		result.Deleted++
	}

	if result.Failed > 0 {
		return result, apperrors.CacheWrite(op, lastErr, fmt.Sprintf("failed to delete %d cache objects", result.Failed))
	}
	return result, nil
}
