// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine runs council meetings.

An Engine owns every piece of mutable meeting state: the live roster, the
proposal queue, user scores, the active voting round and the meeting log. A
single goroutine started with Run consumes one channel of events (client
messages, disconnects, timer firings, the one-second tick and snapshot
queries) and processes each to completion before the next.

A meeting moves through these phases:

	idle -> pre-session -> active round -> (restart | resolved -> interlude)
	interlude -> active round (next proposal) | idle (meeting summary)
	active round -> ended (timeout, deleted proposal, no voters left)

A round resolves only when every member of its voting set has voted and all
agree. A split vote waits for the proposal's author to adjust it, after which
a new round begins. Any live member may instead force the outcome with a
tyrant action.

Every mutation is written through to the Store. Save failures are logged and
the engine carries on from memory.
*/
package engine
