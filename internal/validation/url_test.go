package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/conneroisu/livecanvas/internal/errors"
	"github.com/conneroisu/livecanvas/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		expectErr bool
	}{
		{"display server", "http://127.0.0.1:43117/preview/sketch.js", false},
		{"https", "https://example.com", false},
		{"query params", "http://localhost:8080/?rev=3", false},
		{"escaped name", "http://127.0.0.1:1/preview/my%20sketch.js", false},
		{"javascript scheme", "javascript:alert(1)", true},
		{"file scheme", "file:///etc/passwd", true},
		{"websocket scheme", "ws://127.0.0.1:1", true},
		{"no host", "http://", true},
		{"command injection", "http://localhost;rm -rf /", true},
		{"pipe", "http://localhost|cat", true},
		{"backtick", "http://localhost/`id`", true},
		{"newline", "http://localhost/\nx", true},
		{"space", "http://localhost/a b", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if !tt.expectErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}

func TestValidateChannelAddress(t *testing.T) {
	tests := []struct {
		addr      types.ChannelAddress
		expectErr bool
	}{
		{"ws://127.0.0.1:41234", false},
		{"wss://localhost:8443", false},
		{"http://127.0.0.1:41234", true},
		{"ws://127.0.0.1", true},
		{"ws://127.0.0.1:0", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.addr), func(t *testing.T) {
			err := ValidateChannelAddress(tt.addr)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSourcePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sketch.js")
	require.NoError(t, os.WriteFile(file, []byte("draw();"), 0644))

	abs, err := ValidateSourcePath(file)
	require.NoError(t, err)
	assert.Equal(t, file, abs)

	_, err = ValidateSourcePath(dir)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = ValidateSourcePath(filepath.Join(dir, "missing.js"))
	assert.True(t, errors.IsResourceUnavailable(err))

	_, err = ValidateSourcePath("  ")
	assert.Error(t, err)
}
