// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package meeting aggregates resolved rounds into a meeting summary.

A meeting starts lazily with the first round after no meeting was active
and ends when the proposal queue runs dry after an interlude or when a
round times out. Each resolved round (unanimous or tyrant) adds one item:

	id, title, author, outcome, rounds, totalVotingMs, acceptCount, rejectCount

The summary broadcast at the end carries total, passed, rejected, totalMs,
avgMs (rounded, 0 when empty), fastest, slowest and the items themselves.
*/
package meeting
