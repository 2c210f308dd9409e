// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scoring

import "github.com/danielhkuo/council/models"

// Point values
const (
	AuthorReward   = 10
	AccepterReward = 5
	TyrantReward   = 20
)

// Deltas returns democracy points earned by a round. Only a unanimous
// accept scores: the author gets AuthorReward and every other accepter
// AccepterReward. Any other vote pattern yields nil.
func Deltas(p *models.Proposal, votes map[string]models.Choice) map[string]int {
	if p == nil || len(votes) == 0 {
		return nil
	}
	for _, c := range votes {
		if c != models.ChoiceAccept {
			return nil
		}
	}

	deltas := map[string]int{p.Author: AuthorReward}
	for name := range votes {
		if name != p.Author {
			deltas[name] += AccepterReward
		}
	}
	return deltas
}

// Apply adds democracy deltas to users, creating missing entries.
func Apply(users map[string]*models.UserScore, deltas map[string]int) {
	for name, pts := range deltas {
		User(users, name).Democracy += pts
	}
}

// RewardTyrant credits the tyrant points for an override, whatever its outcome.
func RewardTyrant(users map[string]*models.UserScore, name string) {
	User(users, name).Tyrant += TyrantReward
}

// User returns the score entry for name, creating it on first use.
func User(users map[string]*models.UserScore, name string) *models.UserScore {
	u, ok := users[name]
	if !ok || u == nil {
		u = &models.UserScore{Name: name}
		users[name] = u
	}
	return u
}
