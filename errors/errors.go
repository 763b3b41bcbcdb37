package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure so callers can react without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidURL
	KindAuth
	KindNotFound
	KindUpstream
	KindCacheWrite
)

func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindCacheWrite:
		return "cache_write"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func E(kind Kind, op string, err error, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func InvalidURL(op string, err error, message string) *Error {
	return E(KindInvalidURL, op, err, message)
}

func Auth(op string, err error, message string) *Error {
	return E(KindAuth, op, err, message)
}

func NotFound(op string, err error, message string) *Error {
	return E(KindNotFound, op, err, message)
}

func Upstream(op string, err error, message string) *Error {
	return E(KindUpstream, op, err, message)
}

func CacheWrite(op string, err error, message string) *Error {
	return E(KindCacheWrite, op, err, message)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

func IsInvalidURL(err error) bool { return KindOf(err) == KindInvalidURL }
func IsAuth(err error) bool       { return KindOf(err) == KindAuth }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsUpstream(err error) bool   { return KindOf(err) == KindUpstream }
func IsCacheWrite(err error) bool { return KindOf(err) == KindCacheWrite }
