package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/nijaru/yt-transcript/batch"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/transcription"
	"github.com/nijaru/yt-transcript/utils"
)

// encodeJSON writes v as indented JSON without HTML escaping.
func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// renderTranscript returns the plain text or JSON document for t, newline
// terminated.
func renderTranscript(t *models.Transcript, asJSON bool) ([]byte, error) {
	if !asJSON {
		return []byte(t.PlainText() + "\n"), nil
	}
	var buf strings.Builder
	if err := encodeJSON(&buf, models.NewTranscriptDocument(t)); err != nil {
		return nil, errors.Wrap(err, "failed to encode transcript")
	}
	return []byte(buf.String()), nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressPrinter rewrites a single status line on a terminal.
type progressPrinter struct {
	out   io.Writer
	count int
}

func (p *progressPrinter) update(res batch.LineResult) {
	p.count++
	status := "ok"
	if res.Failed() {
		status = "failed"
	}
	fmt.Fprintf(p.out, "\r\033[KProcessed %d (line %d %s)", p.count, res.Line, status)
}

func (p *progressPrinter) done() {
	if p == nil || p.count == 0 {
		return
	}
	fmt.Fprint(p.out, "\r\033[K")
}

// writeOutputDir writes each successful transcript to dir once per video and
// returns the written path keyed by video ID.
func writeOutputDir(dir string, summary *batch.Summary, asJSON bool) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	ext := ".txt"
	if asJSON {
		ext = ".json"
	}

	written := make(map[string]string)
	var failed []string
	for _, res := range summary.Results {
		if res.Failed() || res.Transcript == nil {
			continue
		}
		if _, ok := written[res.VideoID]; ok {
			continue
		}

		path := filepath.Join(dir, res.VideoID+ext)
		data, err := renderTranscript(res.Transcript, asJSON)
		if err == nil {
			err = utils.WriteFileAtomic(path, data, 0o644)
		}
		if err != nil {
			failed = append(failed, res.VideoID)
			continue
		}
		written[res.VideoID] = path
	}

	if len(failed) > 0 {
		return written, errors.Errorf("failed to write %d transcripts to %s: %s", len(failed), dir, strings.Join(failed, ", "))
	}
	return written, nil
}

func printBatchResults(w io.Writer, summary *batch.Summary, written map[string]string) {
	for _, res := range summary.Results {
		switch {
		case res.Failed():
			fmt.Fprintf(w, "✗ line %d: %s: %v\n", res.Line, res.URL, res.Err)
		default:
			line := fmt.Sprintf("✓ line %d: %s (%s)", res.Line, res.VideoID, sourceLabel(res))
			if path, ok := written[res.VideoID]; ok {
				line += " -> " + path
			}
			if res.CacheErr != nil {
				line += fmt.Sprintf(" [not cached: %v]", res.CacheErr)
			}
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, summaryTable(summary))
}

func sourceLabel(res batch.LineResult) string {
	switch res.Source {
	case transcription.SourceAPI:
		return "fetched"
	case transcription.SourceCache:
		return "cached"
	default:
		return string(res.Source)
	}
}

type batchItem struct {
	Line       int    `json:"line"`
	URL        string `json:"url"`
	VideoID    string `json:"video_id,omitempty"`
	Status     string `json:"status"`
	Title      string `json:"title,omitempty"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	CacheError string `json:"cache_error,omitempty"`
}

type batchReport struct {
	*batch.Summary
	Items []batchItem `json:"results"`
}

func newBatchReport(summary *batch.Summary, written map[string]string) batchReport {
	report := batchReport{Summary: summary, Items: make([]batchItem, 0, len(summary.Results))}
	for _, res := range summary.Results {
		item := batchItem{Line: res.Line, URL: res.URL, VideoID: res.VideoID}
		if res.Failed() {
			item.Status = "failed"
			item.Error = res.Err.Error()
		} else {
			item.Status = sourceLabel(res)
			item.Title = res.Transcript.Title
			item.Output = written[res.VideoID]
		}
		if res.CacheErr != nil {
			item.CacheError = res.CacheErr.Error()
		}
		report.Items = append(report.Items, item)
	}
	return report
}
