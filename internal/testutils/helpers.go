// Package testutils holds fixtures shared by the livecanvas package tests.
package testutils

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/conneroisu/livecanvas/internal/config"
	"github.com/conneroisu/livecanvas/internal/logging"
	"github.com/stretchr/testify/require"
)

// DefaultTemplate contains every placeholder exactly once.
const DefaultTemplate = `<!doctype html>
<html>
<head><base href="${tmplpath}/"></head>
<body>
<canvas id="c"></canvas>
<script>
const ws = new WebSocket("${url}");
${code}
</script>
</body>
</html>
`

// CreatePreviewProject creates a directory holding a source file and, when
// tmpl is non-empty, a template.html beside it. It returns the source path.
func CreatePreviewProject(t *testing.T, source, tmpl string) string {
	t.Helper()
	dir := t.TempDir()

	sourcePath := filepath.Join(dir, "sketch.js")
	require.NoError(t, os.WriteFile(sourcePath, []byte(source), 0644))

	if tmpl != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultTemplate), []byte(tmpl), 0644))
	}

	return sourcePath
}

// CreateTestConfig creates a configuration suitable for tests: ephemeral
// ports, no browser, a short debounce.
func CreateTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Display.Open = false
	cfg.Display.Port = 0
	cfg.Preview.Debounce = 50 * time.Millisecond
	return cfg
}

// LogEntry is one call captured by RecordingLogger.
type LogEntry struct {
	Level     logging.LogLevel
	Component string
	Message   string
	Err       error
	Fields    map[string]interface{}
}

type recorder struct {
	mu      sync.Mutex
	entries []LogEntry
}

// RecordingLogger is a logging.Logger that keeps every entry in memory.
type RecordingLogger struct {
	rec       *recorder
	component string
	fields    map[string]interface{}
}

// NewRecordingLogger returns an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{rec: &recorder{}, fields: map[string]interface{}{}}
}

func (l *RecordingLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.add(logging.LevelDebug, nil, msg, fields)
}

func (l *RecordingLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.add(logging.LevelInfo, nil, msg, fields)
}

func (l *RecordingLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.add(logging.LevelWarn, err, msg, fields)
}

func (l *RecordingLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.add(logging.LevelError, err, msg, fields)
}

func (l *RecordingLogger) With(fields ...interface{}) logging.Logger {
	merged := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			merged[key] = fields[i+1]
		}
	}
	return &RecordingLogger{rec: l.rec, component: l.component, fields: merged}
}

func (l *RecordingLogger) WithComponent(component string) logging.Logger {
	return &RecordingLogger{rec: l.rec, component: component, fields: l.fields}
}

func (l *RecordingLogger) add(level logging.LogLevel, err error, msg string, fields []interface{}) {
	entry := LogEntry{
		Level:     level,
		Component: l.component,
		Message:   msg,
		Err:       err,
		Fields:    make(map[string]interface{}, len(l.fields)+len(fields)/2),
	}
	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			entry.Fields[key] = fields[i+1]
		}
	}

	l.rec.mu.Lock()
	l.rec.entries = append(l.rec.entries, entry)
	l.rec.mu.Unlock()
}

// Entries returns a copy of every captured entry.
func (l *RecordingLogger) Entries() []LogEntry {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	out := make([]LogEntry, len(l.rec.entries))
	copy(out, l.rec.entries)
	return out
}

// Count returns how many entries carry msg.
func (l *RecordingLogger) Count(msg string) int {
	n := 0
	for _, e := range l.Entries() {
		if e.Message == msg {
			n++
		}
	}
	return n
}
