package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/conneroisu/livecanvas/internal/document"
	"github.com/conneroisu/livecanvas/internal/types"
	"github.com/conneroisu/livecanvas/internal/version"
)

// lookup finds the open session whose identity ends in name.
func (s *DisplayServer) lookup(name string) (document.SessionInfo, bool) {
	for _, session := range s.source.Sessions() {
		if session.ID.Name() == name {
			return session, true
		}
	}
	return document.SessionInfo{}, false
}

// sessionName extracts the session name following prefix in the request path.
func sessionName(r *http.Request, prefix string) (string, bool) {
	raw := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
	name, err := url.PathUnescape(raw)
	if err != nil || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func (s *DisplayServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := s.source.Sessions()
	switch len(sessions) {
	case 0:
		http.Error(w, "No active preview", http.StatusNotFound)
	case 1:
		templ.Handler(shellPage(sessions[0])).ServeHTTP(w, r)
	default:
		sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
		templ.Handler(sessionList(sessions)).ServeHTTP(w, r)
	}
}

func (s *DisplayServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name, ok := sessionName(r, "/preview/")
	if !ok {
		http.Error(w, "Invalid session name", http.StatusBadRequest)
		return
	}
	session, ok := s.lookup(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	templ.Handler(shellPage(session)).ServeHTTP(w, r)
}

// handleDocument answers a content request. The source decides whether there
// is anything to show; "nothing" becomes 204 so the display keeps what it has.
func (s *DisplayServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name, ok := sessionName(r, "/document/")
	if !ok {
		http.Error(w, "Invalid session name", http.StatusBadRequest)
		return
	}
	session, ok := s.lookup(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	req := types.RenderRequest{
		ID:        session.ID,
		Cancelled: r.Context().Err() != nil,
	}
	content, ok := s.source.ProvideContent(r.Context(), req)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(content)); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to write document", "session", session.ID)
	}
}

// handleHealth returns the server health status for health checks
func (s *DisplayServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"sessions":  s.source.Sessions(),
		"displays":  s.ClientCount(),
	}
	if s.bridge != nil {
		health["bridge"] = map[string]interface{}{
			"address":     s.bridge.Address(),
			"connections": s.bridge.Connections(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}
