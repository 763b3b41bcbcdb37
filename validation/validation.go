package validation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/nijaru/yt-transcript/errors"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// path prefixes that carry the video ID as the next segment
var pathPrefixes = []string{"embed", "v", "shorts", "live", "e"}

// ExtractVideoID derives the YouTube video ID from a URL or a bare ID.
// Query parameters other than v, fragments and the scheme do not affect
// the result.
func ExtractVideoID(rawURL string) (string, error) {
	const op = "validation.ExtractVideoID"

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.InvalidURL(op, nil, "URL is required")
	}

	if videoIDPattern.MatchString(rawURL) {
		return rawURL, nil
	}

	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.InvalidURL(op, err, "Invalid URL format")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", errors.InvalidURL(op, nil, "URL must use HTTP or HTTPS")
	}

	host := strings.ToLower(parsedURL.Hostname())
	var id string
	switch {
	case host == "youtu.be" || host == "www.youtu.be":
		id = firstSegment(parsedURL.Path)
	case isYouTubeHost(host):
		id = fromYouTubePath(parsedURL)
	default:
		return "", errors.InvalidURL(op, nil, "Only YouTube URLs are supported: "+rawURL)
	}

	if !videoIDPattern.MatchString(id) {
		return "", errors.InvalidURL(op, nil, "Could not extract video ID from: "+rawURL)
	}
	return id, nil
}

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

func isYouTubeHost(host string) bool {
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	host = strings.TrimPrefix(host, "music.")
	return host == "youtube.com" || host == "youtube-nocookie.com"
}

func fromYouTubePath(u *url.URL) string {
	if v := u.Query().Get("v"); v != "" {
		return v
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	for _, prefix := range pathPrefixes {
		if parts[0] == prefix {
			return parts[1]
		}
	}
	return ""
}

func firstSegment(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[:i]
	}
	return path
}
