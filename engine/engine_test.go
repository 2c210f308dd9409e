// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/danielhkuo/council/engine"
	"github.com/danielhkuo/council/models"
	"github.com/danielhkuo/council/testutil"
)

type harness struct {
	t     *testing.T
	eng   *engine.Engine
	clock *testutil.FakeClock
	sched *testutil.ManualScheduler
	out   *testutil.Recorder
	store *testutil.MemoryStore
}

func newHarness(t *testing.T, settings models.Settings, props ...*models.Proposal) *harness {
	t.Helper()

	state := models.DefaultState(settings)
	state.Proposals = append(state.Proposals, props...)

	h := &harness{
		t:     t,
		clock: testutil.NewFakeClock(),
		out:   &testutil.Recorder{},
		store: testutil.NewMemoryStore(state),
	}
	h.sched = testutil.NewManualScheduler(h.clock)

	eng, err := engine.New(context.Background(), engine.Dependencies{
		Store:       h.store,
		Broadcaster: h.out,
		Clock:       h.clock,
		Scheduler:   h.sched,
		AdminName:   testutil.TestAdminName,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	h.eng = eng
	return h
}

func (h *harness) send(connID string, msg models.Inbound) {
	h.eng.Handle(engine.Message{ConnID: connID, Msg: msg})
}

func (h *harness) join(connID, name string) {
	h.send(connID, &models.Hello{Name: name})
}

func (h *harness) vote(connID string, choice models.Choice) {
	h.send(connID, &models.Vote{Choice: choice})
}

func (h *harness) advance(d time.Duration) {
	h.sched.Advance(d, h.eng.Handle)
}

func (h *harness) proposal(id string) *models.Proposal {
	h.t.Helper()
	for _, p := range h.eng.CurrentState().Proposals {
		if p.ID == id {
			return p
		}
	}
	h.t.Fatalf("Proposal %s not found", id)
	return nil
}

func (h *harness) score(name string) models.UserScore {
	u := h.eng.CurrentState().Users[name]
	if u == nil {
		return models.UserScore{}
	}
	return *u
}

// trio joins alice, bob and carol on c1..c3 and runs the pre-session
// countdown so a round is active.
func (h *harness) trio() *models.Session {
	h.t.Helper()
	h.join("c1", "alice")
	h.join("c2", "bob")
	h.join("c3", "carol")
	h.send("c1", &models.StartSession{})
	h.advance(3 * time.Second)

	s := h.eng.CurrentSession()
	if s == nil {
		h.t.Fatal("Expected an active session after the pre-session countdown")
	}
	return s
}

func lastSession(h *harness) *models.Session {
	sessions := h.out.Sessions()
	if len(sessions) == 0 {
		return nil
	}
	return sessions[len(sessions)-1]
}

// Three live members start a session for the earliest proposal.
func TestStartSessionOpensEarliestProposal(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3),
		testutil.TestProposal("p_late", "Later", "alice", time.Hour),
		testutil.TestProposal("p_early", "Sooner", "bob", 0),
	)

	h.join("c1", "alice")
	h.join("c2", "bob")
	h.join("c3", "carol")
	h.send("c1", &models.StartSession{})

	pre, ok := testutil.Last[models.PreSessionEvent](h.out)
	if !ok {
		t.Fatal("Expected preSession event")
	}
	if pre.Seconds != 3 {
		t.Errorf("Expected 3 second countdown, got %d", pre.Seconds)
	}
	if snd, _ := testutil.Last[models.SoundEvent](h.out); snd.Kind != models.SoundStart {
		t.Errorf("Expected start sound, got %q", snd.Kind)
	}
	if h.eng.CurrentSession() != nil {
		t.Fatal("Expected no session during the pre-session countdown")
	}

	h.advance(3 * time.Second)

	s := h.eng.CurrentSession()
	if s == nil {
		t.Fatal("Expected active session")
	}
	if s.ProposalID != "p_early" {
		t.Errorf("Expected p_early, got %s", s.ProposalID)
	}
	if s.Round != 1 {
		t.Errorf("Expected round 1, got %d", s.Round)
	}
	if s.DurationSeconds != 60 {
		t.Errorf("Expected 60 second round, got %d", s.DurationSeconds)
	}
	if want := []string{"alice", "bob", "carol"}; !slices.Equal(s.VotingSet, want) {
		t.Errorf("Expected voting set %v, got %v", want, s.VotingSet)
	}
	if len(s.Votes) != 0 {
		t.Errorf("Expected no votes, got %v", s.Votes)
	}
	if s.StartedAt != h.clock.Now().UnixMilli() {
		t.Errorf("Expected startedAt %d, got %d", h.clock.Now().UnixMilli(), s.StartedAt)
	}
	if !h.eng.MeetingActive() {
		t.Error("Expected a meeting to start with the first round")
	}
	if stats := h.proposal("p_early").Stats; stats == nil || stats.Rounds != 1 {
		t.Errorf("Expected stats with 1 round, got %+v", stats)
	}
}

func TestStartSessionRejections(t *testing.T) {
	t.Run("not enough members", func(t *testing.T) {
		h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "alice", 0))
		h.join("c1", "alice")
		h.join("c2", "bob")
		h.send("c1", &models.StartSession{})

		toasts := h.out.ToastsTo("c1")
		if len(toasts) != 1 || toasts[0] != "Need at least 3 members live" {
			t.Errorf("Expected quorum toast, got %v", toasts)
		}
		if len(testutil.Find[models.PreSessionEvent](h.out)) != 0 {
			t.Error("Expected no preSession event")
		}
		if h.sched.Pending() != 0 {
			t.Errorf("Expected no timers, got %d", h.sched.Pending())
		}
	})

	t.Run("two tabs count once", func(t *testing.T) {
		h := newHarness(t, testutil.TestSettings(2), testutil.TestProposal("p1", "One", "alice", 0))
		h.join("c1", "alice")
		h.join("c2", "alice")
		h.send("c1", &models.StartSession{})

		if toasts := h.out.ToastsTo("c1"); len(toasts) != 1 {
			t.Errorf("Expected quorum toast, got %v", toasts)
		}
	})

	t.Run("countdown already running", func(t *testing.T) {
		h := newHarness(t, testutil.TestSettings(1), testutil.TestProposal("p1", "One", "alice", 0))
		h.join("c1", "alice")
		h.send("c1", &models.StartSession{})
		h.send("c1", &models.StartSession{})

		if toasts := h.out.ToastsTo("c1"); len(toasts) != 1 || toasts[0] != "A session is already running" {
			t.Errorf("Expected running toast, got %v", toasts)
		}
	})

	t.Run("round active", func(t *testing.T) {
		h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "alice", 0))
		h.trio()
		h.send("c2", &models.StartSession{})

		if toasts := h.out.ToastsTo("c2"); len(toasts) != 1 || toasts[0] != "A session is already running" {
			t.Errorf("Expected running toast, got %v", toasts)
		}
	})

	t.Run("interlude", func(t *testing.T) {
		h := newHarness(t, testutil.TestSettings(3),
			testutil.TestProposal("p1", "One", "alice", 0),
			testutil.TestProposal("p2", "Two", "alice", time.Minute),
		)
		h.trio()
		h.send("c1", &models.Tyrant{Action: models.TyrantEnforce})
		h.send("c2", &models.StartSession{})

		if toasts := h.out.ToastsTo("c2"); len(toasts) != 1 || toasts[0] != "Please wait, interlude in progress" {
			t.Errorf("Expected interlude toast, got %v", toasts)
		}
	})
}

func TestEmptyQueueStaysIdle(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(1))
	h.join("c1", "alice")
	h.send("c1", &models.StartSession{})
	h.advance(3 * time.Second)

	if h.eng.CurrentSession() != nil {
		t.Error("Expected no session without open proposals")
	}
	if h.eng.MeetingActive() {
		t.Error("Expected no meeting without open proposals")
	}
	// A new countdown may start right away.
	h.send("c1", &models.StartSession{})
	if toasts := h.out.ToastsTo("c1"); len(toasts) != 0 {
		t.Errorf("Expected no toast, got %v", toasts)
	}
}

// Unanimous accept passes the proposal and scores the voters.
func TestUnanimousAccept(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "Pizza night", "alice", 0))
	s := h.trio()
	startedAt := s.StartedAt

	h.clock.Advance(20 * time.Second)
	h.vote("c1", models.ChoiceAccept)
	h.vote("c2", models.ChoiceAccept)
	if h.eng.CurrentSession() == nil {
		t.Fatal("Expected round to stay open until every voter has voted")
	}
	h.vote("c3", models.ChoiceAccept)

	p := h.proposal("p1")
	if p.Status != models.StatusPassed {
		t.Errorf("Expected passed, got %s", p.Status)
	}
	if got := h.score("alice").Democracy; got != 10 {
		t.Errorf("Expected author democracy 10, got %d", got)
	}
	for _, name := range []string{"bob", "carol"} {
		if got := h.score(name).Democracy; got != 5 {
			t.Errorf("Expected %s democracy 5, got %d", name, got)
		}
	}
	if p.Stats.TotalVotingMs != 20000 {
		t.Errorf("Expected 20000ms voting time, got %d", p.Stats.TotalVotingMs)
	}
	if p.Stats.ResolvedAt != startedAt+20000 {
		t.Errorf("Expected resolvedAt %d, got %d", startedAt+20000, p.Stats.ResolvedAt)
	}

	ended := lastSession(h)
	if ended == nil || ended.Status != models.SessionEnded || ended.Reason != models.ReasonCompleted {
		t.Errorf("Expected session ended with reason completed, got %+v", ended)
	}
	if h.eng.CurrentSession() != nil {
		t.Error("Expected no current session after resolution")
	}

	sounds := testutil.Find[models.SoundEvent](h.out)
	if n := len(sounds); n < 2 || sounds[n-2].Kind != models.SoundPass || sounds[n-1].Kind != models.SoundGavel {
		t.Errorf("Expected pass then gavel, got %v", sounds)
	}

	inter, ok := testutil.Last[models.InterludeEvent](h.out)
	if !ok {
		t.Fatal("Expected interlude event")
	}
	if inter.Seconds != 5 {
		t.Errorf("Expected 5 second interlude, got %d", inter.Seconds)
	}
	if inter.LastOutcome == nil || inter.LastOutcome.ID != "p1" || inter.LastOutcome.Outcome != models.StatusPassed {
		t.Errorf("Expected last outcome p1 passed, got %+v", inter.LastOutcome)
	}

	saved := h.store.Saved()
	if saved.Users["alice"].Democracy != 10 {
		t.Errorf("Expected scores persisted, got %+v", saved.Users["alice"])
	}

	// Nothing left: the interlude ends the meeting.
	h.advance(5 * time.Second)
	ending, ok := testutil.Last[models.EndingEvent](h.out)
	if !ok {
		t.Fatal("Expected ending event")
	}
	sum := ending.Summary
	if sum.Total != 1 || sum.Passed != 1 || sum.Rejected != 0 {
		t.Errorf("Expected 1 passed item, got %+v", sum)
	}
	if sum.TotalMs != 20000 || sum.AvgMs != 20000 {
		t.Errorf("Expected 20000ms total and average, got %d and %d", sum.TotalMs, sum.AvgMs)
	}
	if len(sum.Items) != 1 || sum.Items[0].AcceptCount != 3 || sum.Items[0].RejectCount != 0 {
		t.Errorf("Expected item with 3 accepts, got %+v", sum.Items)
	}
	if h.eng.MeetingActive() {
		t.Error("Expected meeting ended")
	}
}

func TestUnanimousRejectDoesNotScore(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "Karaoke", "alice", 0))
	h.trio()
	for _, c := range []string{"c1", "c2", "c3"} {
		h.vote(c, models.ChoiceReject)
	}

	if p := h.proposal("p1"); p.Status != models.StatusRejected {
		t.Errorf("Expected rejected, got %s", p.Status)
	}
	for _, name := range []string{"alice", "bob", "carol"} {
		if got := h.score(name).Democracy; got != 0 {
			t.Errorf("Expected %s democracy 0, got %d", name, got)
		}
	}
	sounds := testutil.Find[models.SoundEvent](h.out)
	if n := len(sounds); sounds[n-2].Kind != models.SoundReject || sounds[n-1].Kind != models.SoundGavel {
		t.Errorf("Expected reject then gavel, got %v", sounds)
	}
}

func TestInterludeAdvancesToNextProposal(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3),
		testutil.TestProposal("p1", "One", "alice", 0),
		testutil.TestProposal("p2", "Two", "bob", time.Minute),
	)
	first := h.trio()
	for _, c := range []string{"c1", "c2", "c3"} {
		h.vote(c, models.ChoiceAccept)
	}
	preSessions := len(testutil.Find[models.PreSessionEvent](h.out))

	h.advance(4 * time.Second)
	if h.eng.CurrentSession() != nil {
		t.Fatal("Expected no round before the interlude ends")
	}
	h.advance(time.Second)

	s := h.eng.CurrentSession()
	if s == nil {
		t.Fatal("Expected next round after the interlude")
	}
	if s.ProposalID != "p2" || s.Round != 1 {
		t.Errorf("Expected p2 round 1, got %s round %d", s.ProposalID, s.Round)
	}
	if s.ID == first.ID {
		t.Error("Expected a fresh session id")
	}
	if got := len(testutil.Find[models.PreSessionEvent](h.out)); got != preSessions {
		t.Errorf("Expected no pre-session countdown between rounds, got %d", got-preSessions)
	}
	if len(testutil.Find[models.EndingEvent](h.out)) != 0 {
		t.Error("Expected meeting to continue")
	}
}

// A split vote waits for the author, then restarts.
func TestSplitVoteAwaitsAuthor(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "Hike", "alice", 0))
	h.trio()

	h.clock.Advance(15 * time.Second)
	h.vote("c1", models.ChoiceAccept)
	h.vote("c2", models.ChoiceAccept)
	h.vote("c3", models.ChoiceReject)

	s := h.eng.CurrentSession()
	if s == nil || !s.AwaitingAuthorAdjust {
		t.Fatalf("Expected round awaiting author adjustment, got %+v", s)
	}
	if p := h.proposal("p1"); p.Status != models.StatusOpen {
		t.Errorf("Expected proposal still open, got %s", p.Status)
	}

	// Votes are frozen while awaiting.
	h.vote("c3", models.ChoiceAccept)
	if s.Votes["carol"] != models.ChoiceReject {
		t.Errorf("Expected carol's vote frozen, got %s", s.Votes["carol"])
	}

	// Only the author may adjust.
	h.send("c2", &models.AuthorAdjust{ProposalID: "p1", Text: "shorter trail"})
	if s.Round != 1 || !s.AwaitingAuthorAdjust {
		t.Fatalf("Expected non-author adjustment ignored, got round %d", s.Round)
	}

	h.clock.Advance(5 * time.Second)
	h.send("c1", &models.AuthorAdjust{ProposalID: "p1", Text: "shorter trail", EventDate: "2025-04-01T09:00"})

	s = h.eng.CurrentSession()
	if s.Round != 2 {
		t.Errorf("Expected round 2, got %d", s.Round)
	}
	if len(s.Votes) != 0 {
		t.Errorf("Expected votes cleared, got %v", s.Votes)
	}
	if s.AwaitingAuthorAdjust {
		t.Error("Expected awaiting flag cleared")
	}
	if s.StartedAt != h.clock.Now().UnixMilli() {
		t.Errorf("Expected round restarted now, got %d", s.StartedAt)
	}

	p := h.proposal("p1")
	if p.Stats.Rounds != 2 {
		t.Errorf("Expected 2 rounds, got %d", p.Stats.Rounds)
	}
	if p.Stats.TotalVotingMs != 20000 {
		t.Errorf("Expected 20000ms after first round, got %d", p.Stats.TotalVotingMs)
	}
	if len(p.Comments) != 1 || p.Comments[0].Text != "shorter trail" || p.Comments[0].Author != "alice" {
		t.Errorf("Expected adjustment comment, got %+v", p.Comments)
	}
	want := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	if p.EventDate == nil || !p.EventDate.Equal(want) {
		t.Errorf("Expected event date %v, got %v", want, p.EventDate)
	}

	// Second round passes and carries the accumulated time.
	h.clock.Advance(10 * time.Second)
	for _, c := range []string{"c1", "c2", "c3"} {
		h.vote(c, models.ChoiceAccept)
	}
	p = h.proposal("p1")
	if p.Status != models.StatusPassed {
		t.Fatalf("Expected passed, got %s", p.Status)
	}
	if p.Stats.TotalVotingMs != 30000 {
		t.Errorf("Expected 30000ms total, got %d", p.Stats.TotalVotingMs)
	}

	rem, ok := testutil.Last[models.ReminderEvent](h.out)
	if !ok {
		t.Fatal("Expected reminder for proposal with an event date")
	}
	if rem.Title != "Upcoming: Hike" {
		t.Errorf("Expected reminder title, got %q", rem.Title)
	}
	if rem.At != want.Add(-5*time.Minute).UnixMilli() {
		t.Errorf("Expected reminder five minutes early, got %d", rem.At)
	}
}

// The countdown elapses and the meeting ends without advancing.
func TestTimeoutEndsMeeting(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3),
		testutil.TestProposal("p1", "One", "alice", 0),
		testutil.TestProposal("p2", "Two", "alice", time.Minute),
	)
	h.trio()
	h.vote("c1", models.ChoiceAccept)

	h.clock.Advance(59 * time.Second)
	h.eng.Handle(engine.Tick{})
	if h.eng.CurrentSession() == nil {
		t.Fatal("Expected session before the countdown elapses")
	}

	h.clock.Advance(time.Second)
	h.eng.Handle(engine.Tick{})

	if h.eng.CurrentSession() != nil {
		t.Fatal("Expected session ended on timeout")
	}
	ended := lastSession(h)
	if ended.Status != models.SessionEnded || ended.Reason != models.ReasonTimeout {
		t.Errorf("Expected ended with timeout, got %s %s", ended.Status, ended.Reason)
	}
	if _, ok := testutil.Last[models.EndingEvent](h.out); !ok {
		t.Error("Expected ending event on timeout")
	}
	if h.eng.MeetingActive() {
		t.Error("Expected meeting ended")
	}
	if len(testutil.Find[models.InterludeEvent](h.out)) != 0 {
		t.Error("Expected no interlude after a timeout")
	}

	h.advance(time.Minute)
	if h.eng.CurrentSession() != nil {
		t.Error("Expected no automatic next round after a timeout")
	}
	if p := h.proposal("p1"); p.Status != models.StatusOpen {
		t.Errorf("Expected timed-out proposal to stay open, got %s", p.Status)
	}
}

// A tyrant forces the outcome.
func TestTyrantOverride(t *testing.T) {
	tests := []struct {
		name   string
		action models.TyrantAction
		want   models.ProposalStatus
		sound  models.SoundKind
	}{
		{"enforce", models.TyrantEnforce, models.StatusPassed, models.SoundPass},
		{"veto", models.TyrantVeto, models.StatusRejected, models.SoundReject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "alice", 0))
			h.trio()
			h.vote("c1", models.ChoiceAccept)
			h.clock.Advance(7 * time.Second)
			h.send("c2", &models.Tyrant{Action: tt.action})

			p := h.proposal("p1")
			if p.Status != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, p.Status)
			}
			if got := h.score("bob").Tyrant; got != 20 {
				t.Errorf("Expected bob tyrant 20, got %d", got)
			}
			if got := h.score("alice").Democracy; got != 0 {
				t.Errorf("Expected no democracy points, got %d", got)
			}
			if p.Stats.TotalVotingMs != 7000 {
				t.Errorf("Expected 7000ms, got %d", p.Stats.TotalVotingMs)
			}
			if snd, _ := testutil.Last[models.SoundEvent](h.out); snd.Kind != tt.sound {
				t.Errorf("Expected %s sound, got %s", tt.sound, snd.Kind)
			}
			if h.eng.CurrentSession() != nil {
				t.Error("Expected session ended")
			}
			if !h.eng.InterludePending() {
				t.Error("Expected interlude after override")
			}

			h.advance(5 * time.Second)
			ending, ok := testutil.Last[models.EndingEvent](h.out)
			if !ok {
				t.Fatal("Expected meeting to end after the interlude")
			}
			item := ending.Summary.Items[0]
			if item.AcceptCount != 0 || item.RejectCount != 0 {
				t.Errorf("Expected zero counts for override, got %d/%d", item.AcceptCount, item.RejectCount)
			}
		})
	}
}

func TestTyrantRequiresLiveActiveSession(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(1), testutil.TestProposal("p1", "One", "alice", 0))
	h.join("c1", "alice")
	h.send("c1", &models.Tyrant{Action: models.TyrantEnforce})

	if got := h.score("alice").Tyrant; got != 0 {
		t.Errorf("Expected no tyrant points without a session, got %d", got)
	}
	if p := h.proposal("p1"); p.Status != models.StatusOpen {
		t.Errorf("Expected open, got %s", p.Status)
	}
}

func TestDisconnectDropsPendingVoter(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "alice", 0))
	h.trio()
	h.vote("c1", models.ChoiceAccept)
	h.vote("c2", models.ChoiceAccept)

	h.eng.Handle(engine.Disconnected{ConnID: "c3"})

	if p := h.proposal("p1"); p.Status != models.StatusPassed {
		t.Fatalf("Expected passed once the last pending voter left, got %s", p.Status)
	}
	if got := h.score("carol").Democracy; got != 0 {
		t.Errorf("Expected no points for carol, got %d", got)
	}
	live, _ := testutil.Last[models.LiveEvent](h.out)
	if want := []string{"alice", "bob"}; !slices.Equal(live.Live, want) {
		t.Errorf("Expected live %v, got %v", want, live.Live)
	}
}

func TestDisconnectKeepsCastVote(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "alice", 0))
	s := h.trio()
	h.vote("c3", models.ChoiceReject)
	h.eng.Handle(engine.Disconnected{ConnID: "c3"})

	if !s.InVotingSet("carol") {
		t.Error("Expected carol to stay in the voting set after voting")
	}
	if s.Votes["carol"] != models.ChoiceReject {
		t.Error("Expected carol's vote kept")
	}
}

func TestSecondTabKeepsVoterLive(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "alice", 0))
	s := h.trio()
	h.join("c4", "carol")
	h.eng.Handle(engine.Disconnected{ConnID: "c3"})

	if !s.InVotingSet("carol") {
		t.Error("Expected carol to stay in the voting set while another tab is open")
	}
}

func TestLateJoinerVotesDoNotBlock(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "alice", 0))
	s := h.trio()
	h.join("c4", "dave")

	if !slices.Contains(s.Attendees, "dave") {
		t.Error("Expected dave added to attendees")
	}
	if s.InVotingSet("dave") {
		t.Error("Expected dave outside the voting set")
	}

	h.vote("c4", models.ChoiceReject)
	if s.Votes["dave"] != models.ChoiceReject {
		t.Error("Expected dave's vote recorded")
	}
	for _, c := range []string{"c1", "c2", "c3"} {
		h.vote(c, models.ChoiceAccept)
	}
	if p := h.proposal("p1"); p.Status != models.StatusPassed {
		t.Errorf("Expected voting set to decide, got %s", p.Status)
	}
	if got := h.score("dave").Democracy; got != 0 {
		t.Errorf("Expected no points for late joiner, got %d", got)
	}
}

func TestVoteValidation(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "alice", 0))
	s := h.trio()

	h.send("c9", &models.Vote{Choice: models.ChoiceAccept})
	h.send("c1", &models.Vote{Choice: "maybe"})

	if len(s.Votes) != 0 {
		t.Errorf("Expected no votes recorded, got %v", s.Votes)
	}
}

func TestStaleTimerIgnored(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3),
		testutil.TestProposal("p1", "One", "alice", 0),
		testutil.TestProposal("p2", "Two", "alice", time.Minute),
	)
	s := h.trio()

	h.sched.FireAll(h.eng.Handle)

	if cur := h.eng.CurrentSession(); cur != s {
		t.Errorf("Expected the same session after a stale firing, got %+v", cur)
	}
}

func TestDeleteProposal(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "bob", 0))
	h.join("c0", "Alex")
	h.trio()

	h.send("c2", &models.DeleteProposal{ID: "p1"})
	if h.eng.CurrentSession() == nil {
		t.Fatal("Expected non-admin delete ignored")
	}

	h.send("c0", &models.DeleteProposal{ID: "p1"})
	if h.eng.CurrentSession() != nil {
		t.Error("Expected session ended")
	}
	if ended := lastSession(h); ended.Reason != models.ReasonProposalDeleted {
		t.Errorf("Expected reason proposal_deleted, got %s", ended.Reason)
	}
	if got := len(h.eng.CurrentState().Proposals); got != 0 {
		t.Errorf("Expected no proposals, got %d", got)
	}
	if len(h.store.Saved().Proposals) != 0 {
		t.Error("Expected deletion persisted")
	}
}

func TestDeleteUser(t *testing.T) {
	t.Run("remaining voters decide", func(t *testing.T) {
		h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "alice", 0))
		h.join("c0", "alex")
		h.trio()
		h.vote("c1", models.ChoiceAccept)
		h.vote("c2", models.ChoiceAccept)
		h.vote("c0", models.ChoiceAccept)

		h.send("c0", &models.DeleteUser{Name: "carol"})

		if _, ok := h.eng.CurrentState().Users["carol"]; ok {
			t.Error("Expected carol's score removed")
		}
		if p := h.proposal("p1"); p.Status != models.StatusPassed {
			t.Errorf("Expected round resolved without carol, got %s", p.Status)
		}
	})

	t.Run("dissenter deleted while awaiting author", func(t *testing.T) {
		h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "alice", 0))
		h.join("c0", "alex")
		h.trio()
		h.vote("c0", models.ChoiceAccept)
		h.vote("c1", models.ChoiceAccept)
		h.vote("c2", models.ChoiceAccept)
		h.vote("c3", models.ChoiceReject)
		if s := h.eng.CurrentSession(); s == nil || !s.AwaitingAuthorAdjust {
			t.Fatal("Expected split round awaiting the author")
		}

		h.send("c0", &models.DeleteUser{Name: "carol"})

		if p := h.proposal("p1"); p.Status != models.StatusPassed {
			t.Errorf("Expected remaining unanimous voters to pass p1, got %s", p.Status)
		}
		if got := h.score("alice").Democracy; got != 10 {
			t.Errorf("Expected author rewarded 10, got %d", got)
		}
	})

	t.Run("still split after delete stays awaiting", func(t *testing.T) {
		h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "alice", 0))
		h.join("c0", "alex")
		h.trio()
		h.vote("c0", models.ChoiceAccept)
		h.vote("c1", models.ChoiceAccept)
		h.vote("c2", models.ChoiceReject)
		h.vote("c3", models.ChoiceReject)

		h.send("c0", &models.DeleteUser{Name: "carol"})

		s := h.eng.CurrentSession()
		if s == nil || !s.AwaitingAuthorAdjust {
			t.Fatal("Expected round still awaiting the author")
		}
		if p := h.proposal("p1"); p.Status != models.StatusOpen {
			t.Errorf("Expected p1 open, got %s", p.Status)
		}
	})

	t.Run("no voters left", func(t *testing.T) {
		h := newHarness(t, testutil.TestSettings(1), testutil.TestProposal("p1", "One", "bob", 0))
		h.join("c1", "bob")
		h.send("c1", &models.StartSession{})
		h.advance(3 * time.Second)
		h.join("c0", "alex")

		h.send("c0", &models.DeleteUser{Name: "bob"})

		if h.eng.CurrentSession() != nil {
			t.Fatal("Expected session ended")
		}
		if ended := lastSession(h); ended.Reason != models.ReasonNoVoters {
			t.Errorf("Expected reason no_voters, got %s", ended.Reason)
		}
	})

	t.Run("non-admin ignored", func(t *testing.T) {
		h := newHarness(t, testutil.TestSettings(1))
		h.join("c1", "bob")
		h.join("c2", "carol")
		h.send("c1", &models.DeleteUser{Name: "carol"})

		if _, ok := h.eng.CurrentState().Users["carol"]; !ok {
			t.Error("Expected carol kept")
		}
	})
}

func TestUpdateSettings(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3))
	h.join("c0", "alex")
	h.join("c1", "bob")

	five := 5
	h.send("c1", &models.UpdateSettings{Settings: models.SettingsPatch{CountdownSeconds: &five}})
	if got := h.eng.CurrentState().Settings.CountdownSeconds; got != 60 {
		t.Errorf("Expected non-admin update ignored, got %d", got)
	}

	h.send("c0", &models.UpdateSettings{Settings: models.SettingsPatch{CountdownSeconds: &five, RequiredMembers: &five}})
	settings := h.eng.CurrentState().Settings
	if settings.CountdownSeconds != models.MinCountdownSeconds {
		t.Errorf("Expected countdown clamped to %d, got %d", models.MinCountdownSeconds, settings.CountdownSeconds)
	}
	if settings.RequiredMembers != 5 {
		t.Errorf("Expected 5 required members, got %d", settings.RequiredMembers)
	}
	ev, ok := testutil.Last[models.StateEvent](h.out)
	if !ok || ev.Patch.Settings == nil || ev.Patch.Proposals != nil {
		t.Errorf("Expected settings-only patch, got %+v", ev.Patch)
	}
	if h.store.Saved().Settings.RequiredMembers != 5 {
		t.Error("Expected settings persisted")
	}
}

func TestSettingsApplyToNextRound(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "alice", 0))
	h.join("c0", "alex")
	s := h.trio()

	long := 300
	h.send("c0", &models.UpdateSettings{Settings: models.SettingsPatch{CountdownSeconds: &long}})
	if s.DurationSeconds != 60 {
		t.Errorf("Expected active round unchanged, got %d", s.DurationSeconds)
	}
}

func TestCreateAndEditProposal(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3))
	h.join("c1", "bob")
	h.join("c2", "carol")

	h.send("c1", &models.CreateProposal{Payload: models.ProposalDraft{Title: "  "}})
	if toasts := h.out.ToastsTo("c1"); len(toasts) != 1 || toasts[0] != "A proposal needs a title" {
		t.Errorf("Expected title toast, got %v", toasts)
	}

	h.send("c1", &models.CreateProposal{Payload: models.ProposalDraft{Title: "Board games", VoteDeadline: "garbage"}})
	props := h.eng.CurrentState().Proposals
	if len(props) != 1 {
		t.Fatalf("Expected 1 proposal, got %d", len(props))
	}
	p := props[0]
	if p.Author != "bob" || p.Status != models.StatusOpen {
		t.Errorf("Expected open proposal by bob, got %s by %s", p.Status, p.Author)
	}
	if !p.VoteDeadline.Equal(h.clock.Now()) {
		t.Errorf("Expected deadline defaulted to now, got %v", p.VoteDeadline)
	}

	title := "Hijacked"
	h.send("c2", &models.EditProposal{ID: p.ID, Patch: models.ProposalPatch{Title: &title}})
	if p.Title != "Board games" {
		t.Errorf("Expected non-author edit ignored, got %q", p.Title)
	}

	title = "Board games night"
	h.send("c1", &models.EditProposal{ID: p.ID, Patch: models.ProposalPatch{Title: &title}})
	if p.Title != title {
		t.Errorf("Expected author edit applied, got %q", p.Title)
	}
	if saved := h.store.Saved(); saved.Proposals[0].Title != title {
		t.Errorf("Expected edit persisted, got %q", saved.Proposals[0].Title)
	}
}

func TestHello(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3))

	h.join("c1", "   ")
	if toasts := h.out.ToastsTo("c1"); len(toasts) != 1 {
		t.Errorf("Expected name toast, got %v", toasts)
	}

	h.join("c1", "Alex")
	var welcome models.WelcomeEvent
	for _, s := range h.out.All() {
		if ev, ok := s.Event.(models.WelcomeEvent); ok && s.ConnID == "c1" {
			welcome = ev
		}
	}
	if welcome.You.Name != "Alex" || !welcome.You.IsAdmin {
		t.Errorf("Expected Alex as admin, got %+v", welcome.You)
	}
	if !slices.Equal(welcome.State.Live, []string{"Alex"}) {
		t.Errorf("Expected live [Alex], got %v", welcome.State.Live)
	}
	if _, ok := h.eng.CurrentState().Users["Alex"]; !ok {
		t.Error("Expected user created on hello")
	}
	if h.store.Saves() == 0 {
		t.Error("Expected hello persisted")
	}
}

func TestMessageBeforeHelloDropped(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(1))
	h.send("c1", &models.CreateProposal{Payload: models.ProposalDraft{Title: "Sneaky"}})

	if got := len(h.eng.CurrentState().Proposals); got != 0 {
		t.Errorf("Expected no proposals, got %d", got)
	}
	if got := len(h.out.All()); got != 0 {
		t.Errorf("Expected nothing sent, got %d", got)
	}
}

func TestSaveFailureKeepsMemoryState(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(1))
	h.store.FailSaves = true
	h.join("c1", "bob")
	h.send("c1", &models.CreateProposal{Payload: models.ProposalDraft{Title: "Still here"}})

	if got := len(h.eng.CurrentState().Proposals); got != 1 {
		t.Errorf("Expected proposal kept in memory, got %d", got)
	}
	if _, ok := testutil.Last[models.StateEvent](h.out); !ok {
		t.Error("Expected state broadcast despite save failure")
	}
}

func TestLoadFailureStartsEmpty(t *testing.T) {
	store := testutil.NewMemoryStore(models.State{})
	store.LoadErr = errors.New("disk on fire")

	eng, err := engine.New(context.Background(), engine.Dependencies{
		Store:       store,
		Broadcaster: &testutil.Recorder{},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("Expected engine despite load failure, got %v", err)
	}
	if got := eng.CurrentState().Settings; got != models.DefaultSettings() {
		t.Errorf("Expected default settings, got %+v", got)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := engine.New(context.Background(), engine.Dependencies{Broadcaster: &testutil.Recorder{}}); !errors.Is(err, engine.ErrMissingStore) {
		t.Errorf("Expected ErrMissingStore, got %v", err)
	}
	if _, err := engine.New(context.Background(), engine.Dependencies{Store: testutil.NewMemoryStore(models.State{})}); !errors.Is(err, engine.ErrMissingOutput) {
		t.Errorf("Expected ErrMissingOutput, got %v", err)
	}
}

func TestRunAnswersSnapshot(t *testing.T) {
	h := newHarness(t, testutil.TestSettings(3), testutil.TestProposal("p1", "One", "alice", 0))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.eng.Run(ctx) }()

	h.eng.Deliver("c1", &models.Hello{Name: "alice"})

	qctx, qcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer qcancel()
	data, err := h.eng.Snapshot(qctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if len(snap.Proposals) != 1 || snap.Proposals[0].ID != "p1" {
		t.Errorf("Expected p1 in snapshot, got %+v", snap.Proposals)
	}
	if !slices.Equal(snap.Live, []string{"alice"}) {
		t.Errorf("Expected alice live, got %v", snap.Live)
	}
	if snap.Session != nil {
		t.Errorf("Expected no session, got %+v", snap.Session)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if _, err := h.eng.Snapshot(context.Background()); !errors.Is(err, engine.ErrStopped) {
		t.Errorf("Expected ErrStopped after Run returns, got %v", err)
	}
}
