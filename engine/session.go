// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"fmt"
	"time"

	"github.com/danielhkuo/council/auth"
	"github.com/danielhkuo/council/models"
	"github.com/danielhkuo/council/scoring"
)

const (
	preSessionText = "Session starts in"
	interludeText  = "Loading next proposal..."

	reminderLead   = 5 * time.Minute
	reminderPrefix = "Upcoming: "

	toastSessionRunning = "A session is already running"
	toastInterlude      = "Please wait, interlude in progress"
	toastNotEnough      = "Need at least %d members live"
)

func (e *Engine) sessionActive() bool {
	return e.session != nil && e.session.Status == models.SessionActive
}

// startSession begins the pre-session countdown.
func (e *Engine) startSession(connID string) {
	switch {
	case e.sessionActive() || e.preSession.pending():
		e.toast(connID, toastSessionRunning)
		return
	case e.interlude.pending():
		e.toast(connID, toastInterlude)
		return
	case e.presence.Count() < e.settings.RequiredMembers:
		e.toast(connID, fmt.Sprintf(toastNotEnough, e.settings.RequiredMembers))
		return
	}

	secs := e.settings.PreSessionSeconds
	e.logger.Info("pre-session countdown started", "seconds", secs)
	e.broadcast(models.PreSessionEvent{Seconds: secs, Text: preSessionText})
	e.broadcast(models.SoundEvent{Kind: models.SoundStart})
	e.preSession.arm(e.sched, time.Duration(secs)*time.Second)
}

func (e *Engine) timerFired(ev timerFired) {
	switch ev.kind {
	case timerPreSession:
		if !e.preSession.fire(ev.seq) {
			e.logger.Debug("stale timer ignored", "timer", ev.kind)
			return
		}
		e.beginRound()
	case timerInterlude:
		if !e.interlude.fire(ev.seq) {
			e.logger.Debug("stale timer ignored", "timer", ev.kind)
			return
		}
		e.afterInterlude()
	}
}

// beginRound opens round 1 for the next open proposal. With nothing queued
// the engine stays idle.
func (e *Engine) beginRound() {
	if e.sessionActive() || e.preSession.pending() || e.interlude.pending() {
		return
	}
	p := e.proposals.PickNext()
	if p == nil {
		e.logger.Info("no open proposals, staying idle")
		return
	}

	id, err := auth.GenerateID("s")
	if err != nil {
		e.logger.Error("failed to generate session id", "error", err)
		return
	}

	now := e.clock.Now()
	if e.meeting.Ensure(now) {
		e.logger.Info("meeting started")
	}
	p.EnsureStats(now.UnixMilli())

	live := e.presence.LiveNames()
	e.session = &models.Session{
		ID:              id,
		ProposalID:      p.ID,
		StartedAt:       now.UnixMilli(),
		DurationSeconds: e.settings.CountdownSeconds,
		Votes:           map[string]models.Choice{},
		Attendees:       append([]string(nil), live...),
		VotingSet:       append([]string(nil), live...),
		Round:           1,
		Status:          models.SessionActive,
	}
	e.logger.Info("round started", "session", id, "proposal", p.ID, "voters", len(live))

	e.persist()
	e.broadcast(models.SessionEvent{Session: e.session})
}

func (e *Engine) vote(name string, choice models.Choice) {
	s := e.session
	if !e.sessionActive() || !choice.Valid() || !e.presence.IsLive(name) || s.AwaitingAuthorAdjust {
		return
	}
	s.AddAttendee(name)
	s.Votes[name] = choice
	e.broadcast(models.SessionEvent{Session: s})
	e.resolve()
}

// reevaluate resolves again after the voting set shrank. A split that no
// longer holds resolves; one that still does is flagged again.
func (e *Engine) reevaluate() {
	if e.sessionActive() {
		e.session.AwaitingAuthorAdjust = false
	}
	e.resolve()
}

// resolve settles the round once every member of the voting set has voted.
func (e *Engine) resolve() {
	s := e.session
	if !e.sessionActive() || s.AwaitingAuthorAdjust || !s.AllVoted() {
		return
	}
	p := e.proposals.Get(s.ProposalID)
	if p == nil {
		e.endSession(models.ReasonProposalMissing)
		return
	}

	choice, ok := s.Unanimous()
	if !ok {
		s.AwaitingAuthorAdjust = true
		e.logger.Info("round split, awaiting author", "proposal", p.ID, "round", s.Round)
		e.broadcast(models.SessionEvent{Session: s})
		return
	}

	now := e.clock.Now()
	stats := p.EnsureStats(s.StartedAt)
	stats.AddRound(s.StartedAt, now)
	stats.ResolvedAt = now.UnixMilli()

	if choice == models.ChoiceAccept {
		p.Status = models.StatusPassed
		scoring.Apply(e.users, scoring.Deltas(p, s.RequiredVotes()))
		e.persist()
		e.broadcast(models.StateEvent{Patch: models.StatePatch{Proposals: e.proposals.All(), Users: e.users}})
		e.broadcast(models.SoundEvent{Kind: models.SoundPass})
		e.broadcast(models.SoundEvent{Kind: models.SoundGavel})
		e.remind(p)
	} else {
		p.Status = models.StatusRejected
		e.persist()
		e.broadcast(models.StateEvent{Patch: models.StatePatch{Proposals: e.proposals.All()}})
		e.broadcast(models.SoundEvent{Kind: models.SoundReject})
		e.broadcast(models.SoundEvent{Kind: models.SoundGavel})
	}
	e.logger.Info("proposal resolved", "proposal", p.ID, "outcome", p.Status, "rounds", stats.Rounds)

	accept, reject := s.Tally()
	e.record(p, accept, reject)
	e.finishRound(p)
}

func (e *Engine) remind(p *models.Proposal) {
	if p.EventDate == nil {
		return
	}
	e.broadcast(models.ReminderEvent{
		At:    p.EventDate.Add(-reminderLead).UnixMilli(),
		Title: reminderPrefix + p.Title,
	})
}

func (e *Engine) record(p *models.Proposal, accept, reject int) {
	item := models.MeetingItem{
		ID:          p.ID,
		Title:       p.Title,
		Author:      p.Author,
		Outcome:     p.Status,
		AcceptCount: accept,
		RejectCount: reject,
	}
	if p.Stats != nil {
		item.Rounds = p.Stats.Rounds
		item.TotalVotingMs = p.Stats.TotalVotingMs
	}
	if !e.meeting.Record(item) {
		e.logger.Warn("resolution outside a meeting not recorded", "proposal", p.ID)
	}
}

// finishRound ends the resolved session and enters the interlude.
func (e *Engine) finishRound(p *models.Proposal) {
	e.endSession(models.ReasonCompleted)

	secs := e.settings.InterludeSeconds
	e.interlude.arm(e.sched, time.Duration(secs)*time.Second)
	e.broadcast(models.InterludeEvent{
		Seconds:     secs,
		Text:        interludeText,
		LastOutcome: &models.Outcome{ID: p.ID, Title: p.Title, Outcome: p.Status},
	})
}

func (e *Engine) afterInterlude() {
	if e.proposals.PickNext() != nil {
		e.beginRound()
		return
	}
	e.endMeeting()
}

// endSession closes the current round. A timeout also closes the meeting;
// there is no automatic advance after a timeout.
func (e *Engine) endSession(reason string) {
	s := e.session
	if s == nil {
		return
	}
	s.Status = models.SessionEnded
	s.Reason = reason
	e.logger.Info("session ended", "session", s.ID, "reason", reason)
	e.broadcast(models.SessionEvent{Session: s})
	e.session = nil

	if reason == models.ReasonTimeout {
		e.endMeeting()
	}
}

func (e *Engine) endMeeting() {
	summary, ok := e.meeting.End(e.clock.Now())
	if !ok {
		return
	}
	e.logger.Info("meeting ended", "total", summary.Total, "passed", summary.Passed, "rejected", summary.Rejected)
	e.broadcast(models.EndingEvent{Summary: summary})
}

func (e *Engine) tick() {
	if !e.sessionActive() {
		return
	}
	if e.session.Expired(e.clock.Now()) {
		e.endSession(models.ReasonTimeout)
		return
	}
	e.resolve()
}

// authorAdjust restarts a split round after the author revises the proposal.
func (e *Engine) authorAdjust(name string, msg *models.AuthorAdjust) {
	s := e.session
	if !e.sessionActive() || !s.AwaitingAuthorAdjust || s.ProposalID != msg.ProposalID {
		return
	}
	p := e.proposals.Get(s.ProposalID)
	if p == nil || p.Author != name {
		e.logger.Debug("author adjustment ignored", "from", name, "proposal", msg.ProposalID)
		return
	}

	now := e.clock.Now()
	comment := models.Comment{Author: name, Timestamp: now.UnixMilli(), Text: msg.Text}
	if t, ok := models.ParseTime(msg.EventDate); ok {
		t = t.UTC()
		comment.EventDate = &t
		p.EventDate = &t
	}
	if comment.Text != "" || comment.EventDate != nil {
		p.Comments = append(p.Comments, comment)
	}

	stats := p.EnsureStats(s.StartedAt)
	stats.AddRound(s.StartedAt, now)
	stats.Rounds++
	s.Restart(now, e.presence.LiveNames(), e.settings.CountdownSeconds)
	e.logger.Info("round restarted", "proposal", p.ID, "round", s.Round)

	e.persist()
	e.broadcast(models.StateEvent{Patch: models.StatePatch{Proposals: e.proposals.All()}})
	e.broadcast(models.SessionEvent{Session: s})
}

// tyrant forces the outcome of the active round regardless of votes.
func (e *Engine) tyrant(name string, action models.TyrantAction) {
	if !e.sessionActive() || !action.Valid() || !e.presence.IsLive(name) {
		return
	}
	s := e.session
	p := e.proposals.Get(s.ProposalID)
	if p == nil {
		e.endSession(models.ReasonProposalMissing)
		return
	}

	now := e.clock.Now()
	scoring.RewardTyrant(e.users, name)
	stats := p.EnsureStats(s.StartedAt)
	stats.AddRound(s.StartedAt, now)
	stats.ResolvedAt = now.UnixMilli()

	sound := models.SoundPass
	p.Status = models.StatusPassed
	if action == models.TyrantVeto {
		sound = models.SoundReject
		p.Status = models.StatusRejected
	}
	e.logger.Info("tyrant override", "by", name, "action", action, "proposal", p.ID)

	e.persist()
	e.broadcast(models.StateEvent{Patch: models.StatePatch{Proposals: e.proposals.All(), Users: e.users}})
	e.broadcast(models.SoundEvent{Kind: sound})
	if p.Status == models.StatusPassed {
		e.remind(p)
	}

	e.record(p, 0, 0)
	e.finishRound(p)
}
