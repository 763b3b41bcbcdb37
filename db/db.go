package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcript/cache"
	apperrors "github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/logger"
	"github.com/nijaru/yt-transcript/models"
)

// FileName is the database file created inside the cache directory.
const FileName = "transcripts.db"

const schema = `CREATE TABLE IF NOT EXISTS transcripts (
	video_id   TEXT PRIMARY KEY,
	language   TEXT NOT NULL DEFAULT '',
	payload    BLOB NOT NULL,
	fetched_at TIMESTAMP NOT NULL
)`

// Store is a sqlite backed transcript cache.
type Store struct {
	db     *sql.DB
	path   string
	logger logrus.FieldLogger
}

var _ cache.Cache = (*Store)(nil)

// Open creates the database (and its directory) if needed.
func Open(dbPath string, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithField("db_path", dbPath)
	log.Debug("Initializing database")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "error creating directory for database")
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "error opening database")
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error creating table")
	}

	return &Store{db: db, path: dbPath, logger: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Lookup(ctx context.Context, videoID string) (*models.CacheEntry, bool) {
	log := s.logger.WithField("video_id", videoID)

	var (
		language  string
		payload   []byte
		fetchedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT language, payload, fetched_at FROM transcripts WHERE video_id = ?", videoID,
	).Scan(&language, &payload, &fetchedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.WithError(err).Warn("Failed to query cache entry, treating as miss")
		}
		return nil, false
	}

	var transcript models.Transcript
	if err := json.Unmarshal(payload, &transcript); err != nil {
		log.WithError(err).Warn("Corrupt cache entry, treating as miss")
		return nil, false
	}

	log.Debug("Cache hit")
	return &models.CacheEntry{
		VideoID:    videoID,
		Language:   language,
		FetchedAt:  fetchedAt.UTC(),
		Transcript: transcript,
	}, true
}

func (s *Store) Store(ctx context.Context, entry models.CacheEntry) error {
	const op = "db.Store"

	if entry.VideoID == "" {
		return apperrors.CacheWrite(op, nil, "video ID cannot be empty")
	}

	payload, err := json.Marshal(entry.Transcript)
	if err != nil {
		return apperrors.CacheWrite(op, err, "failed to encode transcript")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.CacheWrite(op, err, "error beginning transaction")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transcripts (video_id, language, payload, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			language = excluded.language,
			payload = excluded.payload,
			fetched_at = excluded.fetched_at`)
	if err != nil {
		tx.Rollback()
		return apperrors.CacheWrite(op, err, "error preparing statement")
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, entry.VideoID, entry.Language, payload, entry.FetchedAt.UTC()); err != nil {
		tx.Rollback()
		return apperrors.CacheWrite(op, err, "error executing statement")
	}

	if err := tx.Commit(); err != nil {
		return apperrors.CacheWrite(op, err, "error committing transaction")
	}

	s.logger.WithFields(logrus.Fields{
		"video_id": entry.VideoID,
		"bytes":    len(payload),
	}).Debug("Stored cache entry")
	return nil
}

func (s *Store) Stats(ctx context.Context) (cache.Stats, error) {
	stats := cache.Stats{Location: s.path}

	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), SUM(LENGTH(payload)) FROM transcripts",
	).Scan(&stats.Entries, &total)
	if err != nil {
		return stats, errors.Wrap(err, "error querying database")
	}
	stats.TotalBytes = total.Int64
	return stats, nil
}

func (s *Store) Clear(ctx context.Context) (cache.ClearResult, error) {
	const op = "db.Clear"
	var result cache.ClearResult

	res, err := s.db.ExecContext(ctx, "DELETE FROM transcripts")
	if err != nil {
		return result, apperrors.CacheWrite(op, err, "error executing delete statement")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return result, apperrors.CacheWrite(op, err, "error reading deleted row count")
	}
	result.Deleted = int(n)

	s.logger.WithField("deleted", result.Deleted).Info("Cleared cache")
	return result, nil
}
