// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package proposals holds the proposal queue and its scheduling policy.

# Lifecycle

Proposals are created open and move to passed or rejected only through the
engine (unanimous vote or tyrant action). After that only the administrator
may change them:

	open → passed
	open → rejected

# Scheduling

PickNext is first-in, first-out by voteDeadline, which the client sets to
the creation time. There is no priority or fairness weighting.

# Permissions

	Edit    author (open proposals only) or administrator
	Delete  administrator only

Edit and Delete return ErrForbidden for anyone else. The engine drops those
requests without answering.
*/
package proposals
