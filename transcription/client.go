package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/logger"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/validation"
)

const maxResponseBytes = 32 << 20

// Fetcher retrieves a transcript from the remote service.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string, opts FetchOptions) (*models.Transcript, error)
}

type FetchOptions struct {
	Language string // preferred transcript language, empty for the API default
}

type ClientConfig struct {
	BaseURL   string
	ActorID   string
	Token     string
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    logrus.FieldLogger
}

// Client calls the Apify transcript actor synchronously: one POST starts the
// run, waits for it and returns the dataset items.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	logger     logrus.FieldLogger
}

var _ Fetcher = (*Client)(nil)

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("API token is required")
	}
	if cfg.BaseURL == "" || cfg.ActorID == "" {
		return nil, fmt.Errorf("API base URL and actor ID are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		endpoint: fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items",
			strings.TrimRight(cfg.BaseURL, "/"), url.PathEscape(cfg.ActorID)),
		token:  cfg.Token,
		logger: cfg.Logger,
	}, nil
}

type runInput struct {
	URLs              []string `json:"urls"`
	OutputFormat      string   `json:"outputFormat"`
	PreferredLanguage string   `json:"preferredLanguage,omitempty"`
}

func (c *Client) Fetch(ctx context.Context, videoID string, opts FetchOptions) (*models.Transcript, error) {
	const op = "Client.Fetch"
	log := c.logger.WithField("video_id", videoID)

	body, err := json.Marshal(runInput{
		URLs:              []string{validation.WatchURL(videoID)},
		OutputFormat:      "captions",
		PreferredLanguage: opts.Language,
	})
	if err != nil {
		return nil, errors.Upstream(op, err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Upstream(op, err, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Info("Fetching transcript")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Upstream(op, err, "transcription request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Upstream(op, err, "failed to read response body")
	}

	if err := checkStatus(op, resp.StatusCode, payload); err != nil {
		log.WithError(err).WithField("status", resp.StatusCode).Warn("Transcription API rejected request")
		return nil, err
	}

	transcript, err := decodeTranscript(op, videoID, payload)
	if err != nil {
		return nil, err
	}

	log.WithField("segments", len(transcript.Segments)).Info("Transcript fetched")
	return transcript, nil
}

func checkStatus(op string, status int, payload []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	detail := apiErrorMessage(payload)
	cause := fmt.Errorf("status %d", status)
	if detail != "" {
		cause = fmt.Errorf("status %d: %s", status, detail)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Auth(op, cause, "Invalid API token")
	case http.StatusPaymentRequired:
		return errors.Upstream(op, cause, "APIFY quota exceeded, check your billing: https://console.apify.com/billing")
	case http.StatusRequestTimeout:
		return errors.Upstream(op, cause, "transcription run timed out")
	default:
		return errors.Upstream(op, cause, "transcription API returned an error")
	}
}

// apiErrorMessage pulls the message out of an Apify error body
// ({"error": {"type": "...", "message": "..."}}), falling back to raw text.
func apiErrorMessage(payload []byte) string {
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}

	text := strings.TrimSpace(string(payload))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

type datasetItem struct {
	VideoID  string    `json:"videoId"`
	Title    string    `json:"title"`
	Language string    `json:"language"`
	Duration flexFloat `json:"duration"`
	Captions []caption `json:"captions"`
	Text     string    `json:"text"`
}

func decodeTranscript(op, videoID string, payload []byte) (*models.Transcript, error) {
	var items []datasetItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, errors.Upstream(op, err, "malformed response body")
	}
	if len(items) == 0 {
		return nil, errors.NotFound(op, nil, "No transcript found for this video, it might not have captions available")
	}

	item := items[0]
	transcript := &models.Transcript{
		VideoID:  videoID,
		Title:    item.Title,
		Language: item.Language,
		Duration: float64(item.Duration),
		Text:     strings.TrimSpace(item.Text),
	}
	for _, c := range item.Captions {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		transcript.Segments = append(transcript.Segments, models.Segment(c))
	}

	if transcript.IsEmpty() {
		return nil, errors.NotFound(op, nil, "No transcript content found for this video")
	}
	return transcript, nil
}

// caption accepts both plain string captions and {start, duration, text}
// objects.
type caption models.Segment

func (c *caption) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*c = caption{Text: text}
		return nil
	}

	var obj struct {
		Start    flexFloat `json:"start"`
		Duration flexFloat `json:"duration"`
		Dur      flexFloat `json:"dur"`
		Text     string    `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	duration := obj.Duration
	if duration == 0 {
		duration = obj.Dur
	}
	*c = caption{
		Start:    float64(obj.Start),
		Duration: float64(duration),
		Text:     obj.Text,
	}
	return nil
}

// flexFloat decodes numbers that may arrive as JSON strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}
