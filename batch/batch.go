package batch

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nijaru/yt-transcript/logger"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/transcription"
	"github.com/nijaru/yt-transcript/validation"
)

const maxLineBytes = 1 << 20

// Getter resolves a video ID to a transcript. *transcription.Service
// implements it.
type Getter interface {
	GetByID(ctx context.Context, videoID string, opts transcription.Options) (*transcription.Result, error)
}

type Config struct {
	Concurrency  int     // unique videos processed in parallel, 1 keeps input order
	CostPerVideo float64 // estimated USD per freshly fetched video
}

type Options struct {
	NoCache  bool
	Language string
	// Progress, when set, is called once per completed line. Calls are
	// serialized but arrive in completion order.
	Progress func(LineResult)
}

// LineResult is the outcome of one non-blank input line.
type LineResult struct {
	Line       int                  `json:"line"`
	URL        string               `json:"url"`
	VideoID    string               `json:"video_id,omitempty"`
	Source     transcription.Source `json:"source,omitempty"`
	Transcript *models.Transcript   `json:"-"`
	Err        error                `json:"-"`
	CacheErr   error                `json:"-"`
}

func (r LineResult) Failed() bool {
	return r.Err != nil
}

type Summary struct {
	Total         int          `json:"total"`
	Cached        int          `json:"cached"`
	Fetched       int          `json:"fetched"`
	Failed        int          `json:"failed"`
	EstimatedCost float64      `json:"estimated_cost"`
	Results       []LineResult `json:"-"`
}

// AllFailed reports whether a non-empty batch produced no transcript at all.
func (s *Summary) AllFailed() bool {
	return s.Total > 0 && s.Failed == s.Total
}

type Runner struct {
	getter Getter
	cfg    Config
	logger logrus.FieldLogger
}

func NewRunner(getter Getter, cfg Config, log logrus.FieldLogger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{getter: getter, cfg: cfg, logger: log}
}

// Run processes the newline-delimited URL list at path.
func (r *Runner) Run(ctx context.Context, path string, opts Options) (*Summary, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	return r.RunLines(ctx, lines, opts), nil
}

// ReadLines returns every line of the file at path, blanks included, so
// line numbers stay meaningful.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open batch file")
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read batch file %s", path)
	}
	return lines, nil
}

// job groups every line index that refers to the same video.
type job struct {
	videoID string
	indexes []int
}

// RunLines processes lines in order. Blank lines and lines starting with #
// are skipped. A video that appears more than once is fetched at most once;
// its repeats share the first result and count as cached.
func (r *Runner) RunLines(ctx context.Context, lines []string, opts Options) *Summary {
	var (
		results []LineResult
		jobs    []*job
		byID    = make(map[string]*job)
		mu      sync.Mutex
	)

	report := func(res LineResult) {
		if opts.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		opts.Progress(res)
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		res := LineResult{Line: i + 1, URL: line}
		videoID, err := validation.ExtractVideoID(line)
		if err != nil {
			r.logger.WithFields(logrus.Fields{"line": i + 1, "url": line}).Warn("Skipping invalid URL")
			res.Err = err
			results = append(results, res)
			report(res)
			continue
		}

		res.VideoID = videoID
		results = append(results, res)
		idx := len(results) - 1
		if j, ok := byID[videoID]; ok {
			j.indexes = append(j.indexes, idx)
			continue
		}
		j := &job{videoID: videoID, indexes: []int{idx}}
		byID[videoID] = j
		jobs = append(jobs, j)
	}

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			r.process(ctx, j, results, opts, report)
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{Total: len(results), Results: results}
	for _, res := range results {
		switch {
		case res.Err != nil:
			summary.Failed++
		case res.Source == transcription.SourceAPI:
			summary.Fetched++
		default:
			summary.Cached++
		}
	}
	summary.EstimatedCost = float64(summary.Fetched) * r.cfg.CostPerVideo

	r.logger.WithFields(logrus.Fields{
		"total":   summary.Total,
		"cached":  summary.Cached,
		"fetched": summary.Fetched,
		"failed":  summary.Failed,
	}).Info("Batch complete")
	return summary
}

// process fetches one unique video and fills in every line that refers to
// it. Each job owns its indexes, so results needs no lock.
func (r *Runner) process(ctx context.Context, j *job, results []LineResult, opts Options, report func(LineResult)) {
	log := r.logger.WithField("video_id", j.videoID)

	var (
		result *transcription.Result
		err    = ctx.Err()
	)
	if err == nil {
		result, err = r.getter.GetByID(ctx, j.videoID, transcription.Options{
			NoCache:  opts.NoCache,
			Language: opts.Language,
		})
	}
	if err != nil {
		log.WithError(err).Warn("Batch item failed")
	}

	for n, idx := range j.indexes {
		res := &results[idx]
		switch {
		case err != nil:
			res.Err = err
		case n == 0:
			res.Source = result.Source
			res.Transcript = result.Transcript
			res.CacheErr = result.CacheErr
		default:
			res.Source = transcription.SourceDuplicate
			res.Transcript = result.Transcript
		}
		report(*res)
	}
}
