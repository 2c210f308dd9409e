// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package scoring computes the points members earn from resolved rounds.
//
// Democracy points come only from unanimous acceptance (author +10, each
// other accepter +5). A tyrant override earns the actor +20 tyrant points
// and nobody any democracy points. Scores never decrease.
package scoring
