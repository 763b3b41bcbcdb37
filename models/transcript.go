package models

import (
	"strings"
	"time"
)

// Segment is one timed caption line.
type Segment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// Transcript is what the transcription API returned for a video.
type Transcript struct {
	VideoID  string    `json:"video_id"`
	Title    string    `json:"title,omitempty"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
	Text     string    `json:"text,omitempty"` // used when the API returns no segments
}

// PlainText returns the caption lines separated by newlines.
func (t *Transcript) PlainText() string {
	return t.join("\n")
}

// FullText returns the caption lines as one space separated paragraph.
func (t *Transcript) FullText() string {
	return t.join(" ")
}

func (t *Transcript) join(sep string) string {
	if t == nil {
		return ""
	}
	if len(t.Segments) == 0 {
		return strings.TrimSpace(t.Text)
	}
	lines := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, sep)
}

// IsEmpty reports whether the transcript carries no text at all.
func (t *Transcript) IsEmpty() bool {
	return t.PlainText() == ""
}

// CacheEntry is the persisted form of a fetched transcript.
type CacheEntry struct {
	VideoID    string     `json:"video_id"`
	Language   string     `json:"language,omitempty"` // requested language, empty for the API default
	FetchedAt  time.Time  `json:"fetched_at"`
	Transcript Transcript `json:"transcript"`
}

// MatchesLanguage reports whether the entry can serve a request for lang.
// An empty lang accepts any entry.
func (e *CacheEntry) MatchesLanguage(lang string) bool {
	return lang == "" || strings.EqualFold(e.Language, lang)
}
