package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/conneroisu/livecanvas/internal/errors"
)

// Editor supplies the current text of a source file. It is the editing
// collaborator of the preview pipeline.
type Editor interface {
	Text(path string) (string, error)
}

// FileEditor reads source text from disk, for hosts whose editor saves to
// the previewed file.
type FileEditor struct{}

// Text returns the file content at path.
func (FileEditor) Text(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewResourceUnavailable(
			errors.CodeSourceUnavailable,
			fmt.Sprintf("source %s unavailable", path),
			err,
		)
	}
	return string(data), nil
}

// MemoryEditor holds unsaved buffers in memory, keyed by cleaned path.
type MemoryEditor struct {
	mu      sync.RWMutex
	buffers map[string]string
}

// NewMemoryEditor creates an empty MemoryEditor.
func NewMemoryEditor() *MemoryEditor {
	return &MemoryEditor{buffers: make(map[string]string)}
}

// Set replaces the buffer for path.
func (e *MemoryEditor) Set(path, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffers[filepath.Clean(path)] = text
}

// Remove drops the buffer for path, as when the document is closed.
func (e *MemoryEditor) Remove(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.buffers, filepath.Clean(path))
}

// Text returns the buffer for path.
func (e *MemoryEditor) Text(path string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	text, ok := e.buffers[filepath.Clean(path)]
	if !ok {
		return "", errors.NewResourceUnavailable(
			errors.CodeSourceUnavailable,
			fmt.Sprintf("no open document for %s", path),
			nil,
		)
	}
	return text, nil
}
