package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerDefaults(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(Config{Output: &buf})
	require.NoError(t, err)

	assert.Equal(t, logrus.WarnLevel, log.GetLevel())

	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, err := NewLogger(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewLoggerWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer

	log, err := NewLogger(Config{Level: "debug", LogDir: dir, Output: &buf})
	require.NoError(t, err)

	log.WithField("video_id", "dQw4w9WgXcQ").Debug("cache miss")

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "cache miss")
	assert.Contains(t, buf.String(), "video_id=dQw4w9WgXcQ")
}
