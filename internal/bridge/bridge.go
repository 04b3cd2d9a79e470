// Package bridge implements the message bridge: a local websocket listener
// that relays diagnostic text sent by rendered previews back to the host
// console.
//
// A bridge binds an ephemeral port once and keeps that address for its whole
// life, so the address can be embedded in every rendered document. Any number
// of previews may be connected at once, including stale ones from earlier
// renders. Text frames are forwarded to the sink; other frames are logged and
// dropped. Nothing a peer sends can take the bridge down: errors are scoped
// to the connection that caused them.
package bridge

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/livecanvas/internal/config"
	"github.com/conneroisu/livecanvas/internal/errors"
	"github.com/conneroisu/livecanvas/internal/logging"
	"github.com/conneroisu/livecanvas/internal/types"
	"github.com/google/uuid"
)

// State is the lifecycle state of a bridge.
type State int32

const (
	StateUnbound State = iota
	StateListening
	StateClosed
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateListening:
		return "listening"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// connection is one open preview connection.
type connection struct {
	id       string
	conn     *websocket.Conn
	remote   string
	openedAt time.Time
	received atomic.Int64
}

// Bridge relays preview diagnostics to a sink.
type Bridge struct {
	cfg    config.BridgeConfig
	sink   Sink
	logger logging.Logger

	origins  []string
	listener net.Listener
	server   *http.Server
	addr     types.ChannelAddress
	state    State
	ready    chan struct{}

	conns map[string]*connection
	mutex sync.Mutex
	wg    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an unbound bridge forwarding text messages to sink.
func New(cfg config.BridgeConfig, sink Sink, logger logging.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		cfg:     cfg,
		origins: slices.Clone(cfg.AllowedOrigins),
		sink:    sink,
		logger: logger.WithComponent("bridge"),
		state:  StateUnbound,
		ready:  make(chan struct{}),
		conns:  make(map[string]*connection),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Listen binds an ephemeral port on the configured host and starts accepting
// connections. It returns once the bridge is listening.
func (b *Bridge) Listen(ctx context.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.state != StateUnbound {
		return errors.NewNetworkError(errors.CodeBridgeState,
			fmt.Sprintf("bridge cannot listen while %s", b.state), nil)
	}

	host := b.cfg.Host
	if host == "" {
		host = config.DefaultBridgeHost
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return errors.NewNetworkError("BRIDGE_BIND", "failed to bind message bridge", err).
			WithContext("host", host)
	}

	b.listener = listener
	b.addr = types.ChannelAddress("ws://" + listener.Addr().String())
	b.server = &http.Server{
		Handler:           b,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return b.ctx },
	}
	b.state = StateListening
	close(b.ready)

	go func() {
		if err := b.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			b.logger.Error(b.ctx, err, "Message bridge stopped serving")
		}
	}()

	b.logger.Info(ctx, "Message bridge listening", "address", b.addr)
	return nil
}

// Ready is closed once the bridge is listening.
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

// WaitReady blocks until the bridge is listening or ctx is done.
func (b *Bridge) WaitReady(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Address returns the channel address, empty until the bridge listens.
func (b *Bridge) Address() types.ChannelAddress {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.addr
}

// State returns the lifecycle state.
func (b *Bridge) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

// Connections returns the number of open preview connections.
func (b *Bridge) Connections() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.conns)
}

// originEscaper quotes path.Match metacharacters, so a bracketed IPv6 host
// is matched literally.
var originEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// AllowOrigin admits documents served from host, a literal host[:port] such
// as "[::1]:8080", in addition to the configured origin patterns.
func (b *Bridge) AllowOrigin(host string) {
	if host == "" {
		return
	}
	pattern := originEscaper.Replace(host)

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if !slices.Contains(b.origins, pattern) {
		b.origins = append(b.origins, pattern)
	}
}

// ServeHTTP upgrades a preview connection and relays its messages until the
// peer disconnects or the bridge closes.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.State() != StateListening {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	b.mutex.Lock()
	origins := slices.Clone(b.origins)
	b.mutex.Unlock()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		b.logger.Warn(r.Context(), err, "Preview connection rejected", "remote", r.RemoteAddr)
		return
	}
	if b.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(b.cfg.MaxMessageBytes)
	}

	c := &connection{
		id:       uuid.NewString(),
		conn:     conn,
		remote:   r.RemoteAddr,
		openedAt: time.Now(),
	}
	if !b.add(c) {
		conn.Close(websocket.StatusGoingAway, "bridge shutting down")
		return
	}
	defer b.remove(c)

	b.readLoop(c)
}

func (b *Bridge) add(c *connection) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.state != StateListening {
		return false
	}
	b.conns[c.id] = c
	b.wg.Add(1)
	b.logger.Info(b.ctx, "Preview connected",
		"connection", c.id, "remote", c.remote, "connections", len(b.conns))
	return true
}

func (b *Bridge) remove(c *connection) {
	c.conn.CloseNow()

	b.mutex.Lock()
	delete(b.conns, c.id)
	remaining := len(b.conns)
	b.mutex.Unlock()

	b.logger.Info(b.ctx, "Preview disconnected",
		"connection", c.id,
		"messages", c.received.Load(),
		"duration", time.Since(c.openedAt).Round(time.Millisecond).String(),
		"connections", remaining)
	b.wg.Done()
}

// readLoop classifies every frame from c until the connection ends.
func (b *Bridge) readLoop(c *connection) {
	for {
		readCtx, cancel := b.readContext()
		typ, data, err := c.conn.Read(readCtx)
		idle := readCtx.Err() == context.DeadlineExceeded
		cancel()

		if err != nil {
			b.logReadError(c, err, idle)
			return
		}
		c.received.Add(1)

		switch typ {
		case websocket.MessageText:
			if err := b.sink.Append(string(data) + "\n"); err != nil {
				b.logger.Error(b.ctx, err, "Console sink rejected message", "connection", c.id)
			}
		default:
			merr := errors.NewMalformedMessage("unhandled message type").
				WithContext("connection", c.id).
				WithContext("message_type", typ.String()).
				WithContext("bytes", len(data))
			b.logger.Warn(b.ctx, merr, "Unhandled message type", merr.Fields()...)
		}
	}
}

// readContext bounds a single read by the idle timeout, when one is set.
func (b *Bridge) readContext() (context.Context, context.CancelFunc) {
	if b.cfg.IdleTimeout > 0 {
		return context.WithTimeout(b.ctx, b.cfg.IdleTimeout)
	}
	return context.WithCancel(b.ctx)
}

func (b *Bridge) logReadError(c *connection, err error, idle bool) {
	switch {
	case b.ctx.Err() != nil:
		// Bridge teardown.
	case idle:
		b.logger.Info(b.ctx, "Closing idle preview connection",
			"connection", c.id, "idle_timeout", b.cfg.IdleTimeout.String())
	case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway,
		websocket.CloseStatus(err) == websocket.StatusNoStatusRcvd:
		b.logger.Debug(b.ctx, "Preview closed connection", "connection", c.id)
	default:
		b.logger.Warn(b.ctx, err, "Preview connection error", "connection", c.id)
	}
}

// Close tears the bridge down: the listener and every open connection are
// closed. It is safe to call more than once.
func (b *Bridge) Close() error {
	b.mutex.Lock()
	if b.state == StateClosed {
		b.mutex.Unlock()
		return nil
	}
	wasListening := b.state == StateListening
	b.state = StateClosed
	server := b.server
	conns := make([]*connection, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.mutex.Unlock()

	// Cancelling the bridge context fails every pending read.
	b.cancel()
	for _, c := range conns {
		c.conn.CloseNow()
	}

	var err error
	if server != nil {
		err = server.Close()
	}
	b.wg.Wait()

	if wasListening {
		b.logger.Info(context.Background(), "Message bridge closed", "address", b.addr)
	}
	return err
}
