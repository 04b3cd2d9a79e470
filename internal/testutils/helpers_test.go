package testutils

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conneroisu/livecanvas/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePreviewProject(t *testing.T) {
	sourcePath := CreatePreviewProject(t, "draw()", DefaultTemplate)

	content, err := os.ReadFile(sourcePath)
	require.NoError(t, err)
	assert.Equal(t, "draw()", string(content))
	assert.FileExists(t, filepath.Join(filepath.Dir(sourcePath), "template.html"))
}

func TestCreatePreviewProjectWithoutTemplate(t *testing.T) {
	sourcePath := CreatePreviewProject(t, "draw()", "")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(sourcePath), "template.html"))
}

func TestCreateTestConfig(t *testing.T) {
	cfg := CreateTestConfig()

	assert.False(t, cfg.Display.Open)
	assert.Equal(t, 0, cfg.Display.Port)
	assert.Equal(t, 50*time.Millisecond, cfg.Preview.Debounce)
}

func TestRecordingLogger(t *testing.T) {
	logger := NewRecordingLogger()
	child := logger.WithComponent("bridge").With("connection", "c1")

	child.Warn(context.Background(), errors.New("binary"), "unhandled message type", "bytes", 3)
	logger.Info(context.Background(), "started")

	entries := logger.Entries()
	require.Len(t, entries, 2)

	assert.Equal(t, logging.LevelWarn, entries[0].Level)
	assert.Equal(t, "bridge", entries[0].Component)
	assert.Equal(t, "c1", entries[0].Fields["connection"])
	assert.Equal(t, 3, entries[0].Fields["bytes"])
	assert.EqualError(t, entries[0].Err, "binary")

	assert.Empty(t, entries[1].Component)
	assert.Equal(t, 1, logger.Count("started"))
}
