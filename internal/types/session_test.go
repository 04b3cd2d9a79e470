package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSessionID(t *testing.T) {
	tests := []struct {
		path string
		want SessionID
		name string
	}{
		{"/home/me/art/sketch.js", "livecanvas://preview/sketch.js", "sketch.js"},
		{"relative/dir/draw.ts", "livecanvas://preview/draw.ts", "draw.ts"},
		{"plain.js", "livecanvas://preview/plain.js", "plain.js"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			id := NewSessionID(tt.path)
			assert.Equal(t, tt.want, id)
			assert.Equal(t, tt.name, id.Name())
			assert.Equal(t, string(tt.want), id.String())
		})
	}
}

func TestSessionIDIsStable(t *testing.T) {
	assert.Equal(t, NewSessionID("/a/b/c.js"), NewSessionID("/a/b/c.js"))
}
