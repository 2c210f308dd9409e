// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides the administrator identity check and ID generation.

# Administrator

There is exactly one administrator, identified by a reserved member name
(default "alex", configurable with --admin-name):

	if auth.IsAdmin(name, cfg.AdminName) { ... }

The check is case-insensitive. Administrators may edit or delete any
proposal, delete users, and change the voting settings.

# ID Generation

Random, prefixed IDs for proposals, sessions, and connections:

	id, err := auth.GenerateID("p")  // p_4f0c...

The random part is a version 4 UUID without dashes.
*/
package auth
