// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package meeting

import (
	"math"
	"time"

	"github.com/danielhkuo/council/models"
)

// Aggregator tracks the single active meeting. The zero value has no meeting.
type Aggregator struct {
	current *models.Meeting
}

func (a *Aggregator) Active() bool {
	return a.current != nil && a.current.Status == models.MeetingActive
}

// Ensure starts a meeting unless one is active. It reports whether a new
// meeting was started.
func (a *Aggregator) Ensure(now time.Time) bool {
	if a.Active() {
		return false
	}
	a.current = &models.Meeting{
		Status:    models.MeetingActive,
		StartedAt: now.UnixMilli(),
		Items:     []models.MeetingItem{},
	}
	return true
}

// Record appends a resolved round to the active meeting.
func (a *Aggregator) Record(item models.MeetingItem) bool {
	if !a.Active() {
		return false
	}
	a.current.Items = append(a.current.Items, item)
	return true
}

// End closes the active meeting and returns its summary.
func (a *Aggregator) End(now time.Time) (models.Summary, bool) {
	if !a.Active() {
		return models.Summary{}, false
	}
	a.current.Status = models.MeetingEnded
	a.current.EndedAt = now.UnixMilli()
	summary := Summarize(a.current.Items)
	a.current = nil
	return summary, true
}

// Reset drops any meeting without summarizing it.
func (a *Aggregator) Reset() {
	a.current = nil
}

// Summarize aggregates meeting items. Fastest is the first item with the
// smallest voting time, slowest the first item with the largest.
func Summarize(items []models.MeetingItem) models.Summary {
	s := models.Summary{
		Total: len(items),
		Items: append([]models.MeetingItem{}, items...),
	}
	for i := range s.Items {
		item := &s.Items[i]
		switch item.Outcome {
		case models.StatusPassed:
			s.Passed++
		case models.StatusRejected:
			s.Rejected++
		}
		s.TotalMs += item.TotalVotingMs

		if s.Fastest == nil || item.TotalVotingMs < s.Fastest.TotalVotingMs {
			s.Fastest = item
		}
		if s.Slowest == nil || item.TotalVotingMs > s.Slowest.TotalVotingMs {
			s.Slowest = item
		}
	}
	if s.Total > 0 {
		s.AvgMs = int64(math.Round(float64(s.TotalMs) / float64(s.Total)))
	}
	return s
}
