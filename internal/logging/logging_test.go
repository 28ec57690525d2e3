package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locolive/proconnect/internal/config"
	"github.com/locolive/proconnect/internal/logging"
)

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proconnect.log")
	logger, err := logging.New(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, true)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("request sent")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"request sent"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := logging.New(config.LogConfig{Level: "chatty"}, false)
	require.Error(t, err)
}
