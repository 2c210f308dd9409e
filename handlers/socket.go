// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/council/cliparse"
	"github.com/danielhkuo/council/middleware"
	"github.com/danielhkuo/council/transport"
)

// Server is the connection side of the WebSocket hub.
type Server interface {
	Serve(conn *websocket.Conn, d transport.Dispatcher)
}

type SocketHandler struct {
	hub      Server
	dispatch transport.Dispatcher
	upgrader websocket.Upgrader
}

func NewSocketHandler(hub Server, dispatch transport.Dispatcher, cfg cliparse.Config) *SocketHandler {
	origins := cfg.AllowedOrigins
	return &SocketHandler{
		hub:      hub,
		dispatch: dispatch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(r.Header.Get("Origin"), origins)
			},
		},
	}
}

// Connect handles GET /ws
// Upgrades to a WebSocket and serves it until the client goes away
func (h *SocketHandler) Connect(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Warn("websocket upgrade failed", "remote", middleware.GetClientIP(r), "error", err)
		return
	}

	slog.Info("websocket connected", "remote", middleware.GetClientIP(r))
	h.hub.Serve(conn, h.dispatch)
}
