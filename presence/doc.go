// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package presence tracks which members are connected right now.
//
// Names are de-duplicated: a member with two browser tabs counts once.
// The engine announces the roster to clients after every Join and Leave.
package presence
