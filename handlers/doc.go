// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the council server.

# Handler Types

  - StateHandler: read-only JSON snapshot of the meeting state
  - SocketHandler: WebSocket upgrade for the live client protocol

Handlers are created via constructor functions:

	stateHandler := handlers.NewStateHandler(eng)
	socketHandler := handlers.NewSocketHandler(hub, eng, cfg)

# State Snapshot

	GET /api/state

Returns proposals, users, settings, live and session. The snapshot is taken
on the engine goroutine, so it is always consistent. Responds 503 if the
engine does not answer in time.

# Live Protocol

	GET /ws

Clients send tagged JSON messages (hello, vote, ...) and receive tagged
events (welcome, session, ...). Origins are checked against the configured
allow list.
*/
package handlers
