package middleware

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const RequestIDHeader = "X-Request-ID"

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain wraps base with each middleware in order, so the first one listed
// sees the request first.
func Chain(base http.RoundTripper, mws ...func(http.RoundTripper) http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// Logging tags each outgoing request with a request ID and logs its outcome.
func Logging(log logrus.FieldLogger) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			requestID := req.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
				req = req.Clone(req.Context())
				req.Header.Set(RequestIDHeader, requestID)
			}

			entry := log.WithFields(logrus.Fields{
				"request_id": requestID,
				"method":     req.Method,
				"url":        redactURL(req.URL),
			})
			entry.Debug("Sending request")

			start := time.Now()
			resp, err := next.RoundTrip(req)
			entry = entry.WithField("latency", time.Since(start).Round(time.Millisecond))
			if err != nil {
				entry.WithError(err).Warn("Request failed")
				return nil, err
			}

			entry.WithField("status", resp.StatusCode).Debug("Received response")
			return resp, nil
		})
	}
}

// RateLimit blocks each request until limiter admits it or the request
// context is done.
func RateLimit(limiter *rate.Limiter) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context()); err != nil {
				return nil, err
			}
			return next.RoundTrip(req)
		})
	}
}

// redactURL strips credentials that may have been put in the query string.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	clean.User = nil
	q := clean.Query()
	for _, key := range []string{"token", "api_key", "key"} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
		}
	}
	clean.RawQuery = q.Encode()
	return clean.String()
}
