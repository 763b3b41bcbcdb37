package models

// TranscriptDocument is the --json output shape for a single video.
type TranscriptDocument struct {
	VideoID    string    `json:"video_id"`
	Title      string    `json:"title"`
	Language   string    `json:"language,omitempty"`
	Transcript []Segment `json:"transcript"`
	FullText   string    `json:"full_text"`
}

// NewTranscriptDocument creates the output document from a transcript
func NewTranscriptDocument(t *Transcript) *TranscriptDocument {
	title := t.Title
	if title == "" {
		title = "Unknown"
	}

	segments := make([]Segment, 0, len(t.Segments))
	for _, s := range t.Segments {
		if s.Text == "" {
			continue
		}
		segments = append(segments, s)
	}

	return &TranscriptDocument{
		VideoID:    t.VideoID,
		Title:      title,
		Language:   t.Language,
		Transcript: segments,
		FullText:   t.FullText(),
	}
}
