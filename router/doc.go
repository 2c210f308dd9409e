// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the council server.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(eng, hub, eng, cfg)

The engine serves both as the snapshot source and as the dispatcher for
WebSocket traffic; the hub owns the connections.

# Endpoints

	GET /health    - Liveness probe
	GET /api/state - JSON snapshot of proposals, scores, settings, roster, session
	GET /ws        - WebSocket upgrade for the live protocol
	GET /          - Banner
*/
package router
