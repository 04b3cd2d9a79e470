// Package document implements the virtual preview document: a renderable
// page computed on demand from the current source text.
//
// Source is pull-based. It never pushes content; it raises an invalidation
// for a session when the change notifier fires, and the host re-requests the
// content through ProvideContent.
package document

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/livecanvas/internal/errors"
	"github.com/conneroisu/livecanvas/internal/logging"
	"github.com/conneroisu/livecanvas/internal/types"
)

// subscriberBuffer bounds queued invalidations per subscriber. One queued
// invalidation already forces a re-pull, so overflow is dropped.
const subscriberBuffer = 16

// Renderer materializes source text into a document.
type Renderer interface {
	Render(sourcePath, code string, addr types.ChannelAddress) (string, error)
	TemplatePath(sourcePath string) string
}

// Source provides virtual document content for preview sessions.
type Source struct {
	editor   Editor
	renderer Renderer
	logger   logging.Logger

	sessions    map[types.SessionID]*Session
	subscribers map[int]chan types.SessionID
	nextSub     int
	mutex       sync.Mutex
}

// NewSource creates a document source backed by editor and renderer.
func NewSource(editor Editor, renderer Renderer, logger logging.Logger) *Source {
	return &Source{
		editor:      editor,
		renderer:    renderer,
		logger:      logger.WithComponent("document"),
		sessions:    make(map[types.SessionID]*Session),
		subscribers: make(map[int]chan types.SessionID),
	}
}

// Open creates the session id bound to sourcePath with channel address addr.
// Opening an existing session returns it unchanged; its address is fixed for
// its lifetime.
func (s *Source) Open(id types.SessionID, sourcePath string, addr types.ChannelAddress) (SessionInfo, error) {
	if id == "" {
		return SessionInfo{}, errors.NewValidationError("INVALID_SESSION", "session id is empty")
	}
	if sourcePath == "" {
		return SessionInfo{}, errors.NewValidationError("INVALID_SESSION", "source path is empty")
	}
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("resolving %s: %w", sourcePath, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if existing, ok := s.sessions[id]; ok {
		return existing.info(), nil
	}

	session := &Session{ID: id, Address: addr, SourcePath: abs}
	s.sessions[id] = session
	s.logger.Info(context.Background(), "Preview session opened",
		"session", id, "source", abs, "address", addr)

	return session.info(), nil
}

// Close destroys the session id.
func (s *Source) Close(id types.SessionID) {
	s.mutex.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mutex.Unlock()

	if ok {
		s.logger.Info(context.Background(), "Preview session closed", "session", id)
	}
}

// Session returns a copy of the session state.
func (s *Source) Session(id types.SessionID) (SessionInfo, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}
	return session.info(), true
}

// Sessions returns a copy of every open session.
func (s *Source) Sessions() []SessionInfo {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.info())
	}
	return out
}

// ProvideContent renders the current document for req.ID. The boolean is
// false when there is no update available: the request was cancelled before
// rendering began, the session is unknown, or the source or template could
// not be read. Such conditions are logged, never returned.
func (s *Source) ProvideContent(ctx context.Context, req types.RenderRequest) (string, bool) {
	if req.Cancelled {
		s.logger.Debug(ctx, "Render request cancelled before materialization", "session", req.ID)
		return "", false
	}

	s.mutex.Lock()
	session, ok := s.sessions[req.ID]
	var path string
	var addr types.ChannelAddress
	if ok {
		path, addr = session.SourcePath, session.Address
	}
	s.mutex.Unlock()

	if !ok {
		s.logger.Debug(ctx, "Render request for unknown session", "session", req.ID)
		return "", false
	}

	code, err := s.editor.Text(path)
	if err != nil {
		s.logger.Warn(ctx, err, "Current source unavailable", "session", req.ID, "source", path)
		return "", false
	}

	doc, err := s.renderer.Render(path, code, addr)
	if err != nil {
		_, kept := s.lastRendered(req.ID)
		s.logger.Warn(ctx, err, "Template unavailable, no content",
			"session", req.ID, "template", s.renderer.TemplatePath(path), "keeps_previous", kept)
		return "", false
	}

	s.mutex.Lock()
	// The session may have been closed while rendering.
	if current, ok := s.sessions[req.ID]; ok && current == session {
		session.snapshot = doc
		session.revision++
		session.renderedAt = time.Now()
	}
	s.mutex.Unlock()

	return doc, true
}

// lastRendered returns the document produced by the last successful render of
// id. It holds the materialized document, not the raw source text; a failed
// render leaves it untouched.
func (s *Source) lastRendered(id types.SessionID) (string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.revision == 0 {
		return "", false
	}
	return session.snapshot, true
}

// Changed handles a change signal for id by invalidating its content. It is
// wired to the change notifier.
func (s *Source) Changed(id types.SessionID) {
	s.mutex.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mutex.Unlock()
		return
	}
	// Sends happen under the lock so an unsubscribe cannot close a channel
	// mid-send. They never block.
	for _, ch := range s.subscribers {
		select {
		case ch <- id:
		default:
		}
	}
	s.mutex.Unlock()

	s.logger.Debug(context.Background(), "Content invalidated", "session", id)
}

// Subscribe returns a channel receiving the identity of every invalidated
// session, and a function that ends the subscription and closes the channel.
func (s *Source) Subscribe() (<-chan types.SessionID, func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := s.nextSub
	s.nextSub++
	ch := make(chan types.SessionID, subscriberBuffer)
	s.subscribers[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mutex.Lock()
			delete(s.subscribers, key)
			close(ch)
			s.mutex.Unlock()
		})
	}
}
