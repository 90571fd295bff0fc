package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-bot-console-go/internal/config"
)

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(config.Logger{Level: "loud"})
	assert.Error(t, err)
}

func TestNewLogger_FileOutput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "console.log")
	log, err := NewLogger(config.Logger{Level: "info", Format: "json", Output: "file", File: file, MaxSize: 1})
	require.NoError(t, err)

	log.Info("hello")
	_ = log.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
