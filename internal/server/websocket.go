package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period. A failed ping drops the display.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Frames buffered per client before it counts as slow and is dropped.
	sendBuffer = 64
)

func (s *DisplayServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Only the shell page served from this host may subscribe; the default
	// origin check compares the Origin header with the request host.
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		server: s,
	}

	select {
	case s.register <- client:
	case <-s.ctx.Done():
		conn.CloseNow()
		return
	}

	go client.writePump()
	client.readPump()
}

func (s *DisplayServer) runWebSocketHub(ctx context.Context) {
	defer close(s.hubDone)

	for {
		select {
		case <-ctx.Done():
			s.clientsMutex.Lock()
			for conn := range s.clients {
				s.dropClient(conn)
			}
			s.clientsMutex.Unlock()
			return

		case client := <-s.register:
			s.clientsMutex.Lock()
			s.clients[client.conn] = client
			n := len(s.clients)
			s.clientsMutex.Unlock()
			s.logger.Debug(ctx, "Display connected", "clients", n)

		case conn := <-s.unregister:
			s.clientsMutex.Lock()
			if s.dropClient(conn) {
				s.logger.Debug(ctx, "Display disconnected", "clients", len(s.clients))
			}
			s.clientsMutex.Unlock()

		case frame := <-s.broadcast:
			if slow := s.fanOut(frame); len(slow) > 0 {
				s.clientsMutex.Lock()
				for _, conn := range slow {
					s.dropClient(conn)
				}
				s.clientsMutex.Unlock()
				s.logger.Warn(ctx, nil, "Dropped slow displays", "count", len(slow))
			}
		}
	}
}

// fanOut queues frame for every display and returns those whose buffer is
// full.
func (s *DisplayServer) fanOut(frame []byte) []*websocket.Conn {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()

	var slow []*websocket.Conn
	for conn, client := range s.clients {
		select {
		case client.send <- frame:
		default:
			slow = append(slow, conn)
		}
	}
	return slow
}

// dropClient forgets conn and stops its writer. clientsMutex must be held.
func (s *DisplayServer) dropClient(conn *websocket.Conn) bool {
	client, ok := s.clients[conn]
	if !ok {
		return false
	}
	delete(s.clients, conn)
	close(client.send)
	conn.CloseNow()
	return true
}

// readPump drains the connection so close frames and pongs are processed.
// Displays never send anything meaningful.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c.conn:
		case <-c.server.ctx.Done():
		}
		c.conn.CloseNow()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		if _, _, err := c.conn.Read(c.server.ctx); err != nil {
			status := websocket.CloseStatus(err)
			if c.server.ctx.Err() == nil && status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				c.server.logger.Debug(c.server.ctx, "Display read ended", "error", err.Error())
			}
			return
		}
	}
}

// writePump delivers queued frames and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.CloseNow()
	}()

	ctx := context.Background()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.server.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
