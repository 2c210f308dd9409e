// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the council server.

Council runs small-group meetings: members connect, queue proposals, and the
server walks through them one at a time in timed voting rounds that only
resolve on a unanimous vote. A tyrant action lets any member force an outcome.

# Starting the Server

With no configuration the server listens on 3318 and keeps its state in
council.db (SQLite):

	go run .

Or with flags:

	go run . -p 8080 -t postgres -d "postgres://..."

# Configuration

All settings may come from flags, the environment, a .env file or a YAML
config file. See package cliparse.

  - DATABASE_TYPE (-t): file, sqlite or postgres
  - DATABASE_URL (-d): file path or connection string
  - PORT (-p): Server port (default: 3318)
  - ADMIN_NAME (--admin-name): administrator (default: alex)

# Architecture

A single engine goroutine owns all meeting state; everything else feeds it
events:

  - engine: event loop, session state machine, orchestration
  - presence, proposals, scoring, meeting: state the engine drives
  - transport: WebSocket hub
  - handlers, router, middleware: HTTP surface
  - db: state persistence (file, SQLite, PostgreSQL)
  - models: domain types and the wire protocol
  - auth: IDs and the administrator check
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
