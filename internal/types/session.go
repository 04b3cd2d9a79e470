// Package types provides common type definitions used throughout livecanvas.
// This package contains shared types to avoid circular dependencies between packages.
package types

import (
	"net/url"
	"path/filepath"
	"strings"
)

// SessionScheme is the URI scheme of virtual preview documents.
const SessionScheme = "livecanvas"

// SessionID is the stable logical address of a virtual preview document,
// e.g. "livecanvas://preview/sketch.js".
type SessionID string

// NewSessionID derives the session identity for a previewed source file.
func NewSessionID(sourcePath string) SessionID {
	u := url.URL{
		Scheme: SessionScheme,
		Host:   "preview",
		Path:   "/" + filepath.Base(sourcePath),
	}
	return SessionID(u.String())
}

// Name returns the last path element of the identity, used in display URLs.
func (id SessionID) Name() string {
	s := string(id)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

func (id SessionID) String() string {
	return string(id)
}

// ChannelAddress is the websocket endpoint a rendered surface connects to in
// order to send diagnostics back to the host. It is chosen once when the
// bridge starts listening and never changes afterwards.
type ChannelAddress string

func (a ChannelAddress) String() string {
	return string(a)
}

// RenderRequest asks for the current content of a session. Cancelled mirrors
// a host cancellation flag that was already set when the request arrived.
type RenderRequest struct {
	ID        SessionID
	Cancelled bool
}
