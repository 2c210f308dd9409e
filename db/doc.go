// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db persists the council state document.

The state (proposals, user scores and settings) is small and always written
as a whole, so every backend stores one JSON document.

# Backends

Open picks a backend by kind:

  - file: a JSON file on disk, written atomically. Comments and trailing
    commas are accepted when loading.
  - sqlite: a single-row table in a SQLite file (modernc.org/sqlite, no cgo).
  - postgres: the same table in PostgreSQL (lib/pq).

For example:

	store, err := db.Open(ctx, db.KindSQLite, "council.db", models.DefaultSettings())
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

A missing document is created from the default state on first Load.

# Schema

CreateSchema creates the council_state table. Safe to call multiple times -
uses IF NOT EXISTS.
*/
package db
