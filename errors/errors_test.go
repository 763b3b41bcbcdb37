package errors

import (
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := NotFound("op", nil, "no transcript available")
	assert.Equal(t, "no transcript available", err.Error())

	cause := fmt.Errorf("status 500")
	err = Upstream("op", cause, "request failed")
	assert.Equal(t, "request failed: status 500", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{
			name:     "invalid url",
			err:      InvalidURL("op", nil, "bad"),
			expected: KindInvalidURL,
		},
		{
			name:     "wrapped with fmt",
			err:      fmt.Errorf("fetch: %w", Auth("op", nil, "rejected")),
			expected: KindAuth,
		},
		{
			name:     "wrapped with pkg/errors",
			err:      pkgerrors.Wrap(CacheWrite("op", nil, "disk full"), "store"),
			expected: KindCacheWrite,
		},
		{
			name:     "plain error",
			err:      fmt.Errorf("standard error"),
			expected: KindUnknown,
		},
		{
			name:     "nil",
			err:      nil,
			expected: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsInvalidURL(InvalidURL("op", nil, "x")))
	assert.True(t, IsAuth(Auth("op", nil, "x")))
	assert.True(t, IsNotFound(NotFound("op", nil, "x")))
	assert.True(t, IsUpstream(Upstream("op", nil, "x")))
	assert.True(t, IsCacheWrite(CacheWrite("op", nil, "x")))
	assert.False(t, IsAuth(Upstream("op", nil, "x")))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "cache_write", KindCacheWrite.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
