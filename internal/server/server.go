// Package server implements the display host: a local HTTP server that shows
// preview sessions in a browser and re-requests their content whenever the
// document source invalidates it.
//
// The browser loads a shell page holding an iframe on /document/<name>. The
// shell subscribes to /events and reloads the iframe on every invalidate
// frame. When the source has nothing new to offer the document endpoint
// answers 204, so the previously displayed document stays in place.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/livecanvas/internal/config"
	"github.com/conneroisu/livecanvas/internal/document"
	"github.com/conneroisu/livecanvas/internal/errors"
	"github.com/conneroisu/livecanvas/internal/logging"
	"github.com/conneroisu/livecanvas/internal/types"
)

// ContentSource is the part of the document source the display host pulls
// content and invalidations from.
type ContentSource interface {
	ProvideContent(ctx context.Context, req types.RenderRequest) (string, bool)
	Subscribe() (<-chan types.SessionID, func())
	Sessions() []document.SessionInfo
}

// BridgeStatus reports the message bridge in health checks.
type BridgeStatus interface {
	Address() types.ChannelAddress
	Connections() int
}

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *DisplayServer
}

// DisplayServer serves preview sessions with live reload capability
type DisplayServer struct {
	config      config.DisplayConfig
	source      ContentSource
	bridge      BridgeStatus
	logger      logging.Logger
	httpServer  *http.Server
	url         string
	serverMutex sync.RWMutex // Protects httpServer and url

	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex
	broadcast    chan []byte
	register     chan *Client
	unregister   chan *websocket.Conn

	ctx          context.Context
	cancel       context.CancelFunc
	unsubscribe  func()
	hubDone      chan struct{}
	shutdownOnce sync.Once
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string          `json:"type"`
	Session   types.SessionID `json:"session,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// New creates a display server for the sessions of source. bridge may be nil.
func New(cfg config.DisplayConfig, source ContentSource, bridge BridgeStatus, logger logging.Logger) *DisplayServer {
	return &DisplayServer{
		config:     cfg,
		source:     source,
		bridge:     bridge,
		logger:     logger.WithComponent("display"),
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn),
		hubDone:    make(chan struct{}),
	}
}

// Start binds the configured address and serves in the background. Port 0
// picks a free port; URL reports the result.
func (s *DisplayServer) Start(ctx context.Context) error {
	s.serverMutex.Lock()
	defer s.serverMutex.Unlock()

	if s.httpServer != nil {
		return errors.NewNetworkError("DISPLAY_STATE", "display server already started", nil)
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.NewNetworkError("DISPLAY_BIND", "failed to bind display server", err).
			WithContext("address", addr)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	invalidations, unsubscribe := s.source.Subscribe()
	s.unsubscribe = unsubscribe
	go s.forwardInvalidations(invalidations)

	// Start WebSocket hub
	go s.runWebSocketHub(s.ctx)

	// Set up HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/document/", s.handleDocument)
	mux.HandleFunc("/preview/", s.handlePreview)
	mux.HandleFunc("/", s.handleIndex)

	s.url = "http://" + browsableAddr(s.config.Host, listener.Addr())
	s.httpServer = &http.Server{
		Handler:           s.addMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error(s.ctx, err, "Display server stopped serving")
		}
	}()

	s.logger.Info(ctx, "Display server listening", "url", s.url)
	return nil
}

// browsableAddr returns the host:port a browser should use for a listener
// bound to host. Wildcard binds are reached through loopback.
func browsableAddr(host string, addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr.String()
	}
	port := strconv.Itoa(tcp.Port)

	if host == "" {
		return net.JoinHostPort("127.0.0.1", port)
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		if ip.To4() != nil {
			return net.JoinHostPort("127.0.0.1", port)
		}
		return net.JoinHostPort("::1", port)
	}
	return net.JoinHostPort(tcp.IP.String(), port)
}

// OriginHost returns the host:port that documents served by this server
// carry in their Origin header, empty before Start.
func (s *DisplayServer) OriginHost() string {
	return strings.TrimPrefix(s.URL(), "http://")
}

// URL returns the base URL of the display server, empty before Start.
func (s *DisplayServer) URL() string {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	return s.url
}

// PreviewURL returns the URL showing the session id.
func (s *DisplayServer) PreviewURL(id types.SessionID) string {
	base := s.URL()
	if base == "" {
		return ""
	}
	return base + previewPath(id.Name())
}

// ClientCount returns the number of connected display clients.
func (s *DisplayServer) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

// forwardInvalidations turns every source invalidation into an invalidate
// frame for the connected displays.
func (s *DisplayServer) forwardInvalidations(invalidations <-chan types.SessionID) {
	for id := range invalidations {
		s.broadcastMessage(UpdateMessage{
			Type:      "invalidate",
			Session:   id,
			Timestamp: time.Now(),
		})
	}
}

func (s *DisplayServer) broadcastMessage(msg UpdateMessage) {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(s.ctx, err, "Failed to marshal message", "type", msg.Type)
		return
	}

	select {
	case s.broadcast <- jsonData:
	case <-s.ctx.Done():
	}
}

func (s *DisplayServer) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")

		start := time.Now()
		handler.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request served",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}

// Shutdown gracefully shuts down the server and disconnects every display.
// It is safe to call more than once.
func (s *DisplayServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server == nil {
			return
		}

		// Stop invalidations first so nothing is queued for a closing hub.
		s.unsubscribe()
		s.cancel()
		<-s.hubDone

		shutdownErr = server.Shutdown(ctx)
		if shutdownErr != nil {
			shutdownErr = fmt.Errorf("display server shutdown: %w", shutdownErr)
		}
		s.logger.Info(ctx, "Display server stopped", "url", s.URL())
	})

	return shutdownErr
}
