package document

import (
	"time"

	"github.com/conneroisu/livecanvas/internal/types"
)

// Session is the state of one active preview target. It is created on the
// first preview request and owned by Source until Close.
type Session struct {
	ID         types.SessionID
	Address    types.ChannelAddress
	SourcePath string

	snapshot   string
	revision   uint64
	renderedAt time.Time
}

// SessionInfo is a read-only copy of a session for callers outside Source.
type SessionInfo struct {
	ID         types.SessionID      `json:"id"`
	Address    types.ChannelAddress `json:"address"`
	SourcePath string               `json:"source_path"`
	Revision   uint64               `json:"revision"`
	RenderedAt time.Time            `json:"rendered_at,omitempty"`
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:         s.ID,
		Address:    s.Address,
		SourcePath: s.SourcePath,
		Revision:   s.revision,
		RenderedAt: s.renderedAt,
	}
}
