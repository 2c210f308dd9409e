// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/council/cliparse"
	"github.com/danielhkuo/council/handlers"
	"github.com/danielhkuo/council/middleware"
	"github.com/danielhkuo/council/transport"
)

func NewRouter(snap handlers.Snapshotter, hub handlers.Server, dispatch transport.Dispatcher, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	stateHandler := handlers.NewStateHandler(snap)
	socketHandler := handlers.NewSocketHandler(hub, dispatch, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Read-only state
	mux.HandleFunc("GET /api/state", middleware.WithLogging(stateHandler.GetState))

	// Live protocol
	mux.HandleFunc("GET /ws", middleware.WithLogging(socketHandler.Connect))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("council API v1"))
	})

	return mux
}
