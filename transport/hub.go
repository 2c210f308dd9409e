// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/council/auth"
	"github.com/danielhkuo/council/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Dispatcher receives decoded client traffic.
type Dispatcher interface {
	Deliver(connID string, msg models.Inbound)
	Disconnect(connID string)
}

type client struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// offer queues data without blocking. Data for a closed client is
// discarded; false means the buffer is full.
func (c *client) offer(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub owns the set of open WebSocket connections. Sends never block the
// caller: a client whose buffer is full is disconnected.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[string]*client), logger: logger}
}

// Count is the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendToAll encodes ev once and queues it for every connection.
func (h *Hub) SendToAll(ev models.Outbound) {
	data, err := models.EncodeOutbound(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "type", ev.Type(), "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.enqueue(c, data)
	}
}

func (h *Hub) SendTo(connID string, ev models.Outbound) {
	data, err := models.EncodeOutbound(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "type", ev.Type(), "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[connID]; ok {
		h.enqueue(c, data)
	}
}

func (h *Hub) enqueue(c *client, data []byte) {
	if !c.offer(data) {
		h.logger.Warn("client too slow, dropping connection", "conn", c.id)
		c.close()
	}
}

// Serve registers conn and pumps messages until it closes. It blocks, so the
// HTTP handler that upgraded the connection should call it directly.
func (h *Hub) Serve(conn *websocket.Conn, d Dispatcher) {
	id, err := auth.GenerateID("c")
	if err != nil {
		h.logger.Error("failed to generate connection id", "error", err)
		conn.Close()
		return
	}
	c := &client{id: id, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	h.logger.Debug("connection opened", "conn", id, "remote", conn.RemoteAddr().String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(c)
	}()

	h.readPump(c, d)

	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
	c.close()
	<-done

	d.Disconnect(id)
	h.logger.Debug("connection closed", "conn", id)
}

func (h *Hub) readPump(c *client, d Dispatcher) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Warn("connection read failed", "conn", c.id, "error", err)
			}
			return
		}

		msg, err := models.DecodeInbound(data)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, models.ErrUnknownMessage) {
				level = slog.LevelInfo
			}
			h.logger.Log(context.Background(), level, "dropping client message", "conn", c.id, "error", err)
			continue
		}
		d.Deliver(c.id, msg)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("connection write failed", "conn", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client. Serve calls return as their reads fail.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		c.close()
	}
}
