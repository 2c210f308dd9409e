package models

import (
	"slices"
	"strings"
	"time"
)

// Proposal status constants
type ProposalStatus string

const (
	StatusOpen     ProposalStatus = "open"
	StatusPending  ProposalStatus = "pending"
	StatusPassed   ProposalStatus = "passed"
	StatusRejected ProposalStatus = "rejected"
)

func (s ProposalStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusPending, StatusPassed, StatusRejected:
		return true
	}
	return false
}

// Vote choices
type Choice string

const (
	ChoiceAccept Choice = "accept"
	ChoiceReject Choice = "reject"
)

func (c Choice) Valid() bool {
	return c == ChoiceAccept || c == ChoiceReject
}

// Tyrant actions
type TyrantAction string

const (
	TyrantEnforce TyrantAction = "enforce"
	TyrantVeto    TyrantAction = "veto"
)

func (a TyrantAction) Valid() bool {
	return a == TyrantEnforce || a == TyrantVeto
}

// Session and meeting status constants
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

type MeetingStatus string

const (
	MeetingActive MeetingStatus = "active"
	MeetingEnded  MeetingStatus = "ended"
)

// Reasons a session ends
const (
	ReasonCompleted       = "completed"
	ReasonTimeout         = "timeout"
	ReasonProposalDeleted = "proposal_deleted"
	ReasonProposalMissing = "proposal_missing"
	ReasonNoVoters        = "no_voters"
)

// Settings defaults
const (
	DefaultRequiredMembers   = 3
	DefaultCountdownSeconds  = 180
	DefaultInterludeSeconds  = 5
	DefaultPreSessionSeconds = 5

	MinCountdownSeconds = 10
)

// Domain types

type Comment struct {
	Author    string     `json:"author"`
	Timestamp int64      `json:"timestamp"` // epoch ms
	Text      string     `json:"text,omitempty"`
	EventDate *time.Time `json:"eventDate,omitempty"`
}

type ProposalStats struct {
	Rounds         int   `json:"rounds"`
	TotalVotingMs  int64 `json:"totalVotingMs"`
	FirstStartedAt int64 `json:"firstStartedAt"`
	ResolvedAt     int64 `json:"resolvedAt,omitempty"`
}

// AddRound accumulates the voting time of a round that started at startedAt (epoch ms).
func (s *ProposalStats) AddRound(startedAt int64, now time.Time) {
	if elapsed := now.UnixMilli() - startedAt; elapsed > 0 {
		s.TotalVotingMs += elapsed
	}
}

type Proposal struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	VoteDeadline time.Time      `json:"voteDeadline"` // ordering key, set at creation
	EventDate    *time.Time     `json:"eventDate,omitempty"`
	Author       string         `json:"author"`
	Status       ProposalStatus `json:"status"`
	CreatedAt    int64          `json:"createdAt"` // epoch ms
	Comments     []Comment      `json:"comments"`
	Stats        *ProposalStats `json:"stats,omitempty"`
}

// EnsureStats returns the proposal's stats, creating them for a first round
// that started at startedAt (epoch ms).
func (p *Proposal) EnsureStats(startedAt int64) *ProposalStats {
	if p.Stats == nil {
		p.Stats = &ProposalStats{Rounds: 1, FirstStartedAt: startedAt}
	}
	return p.Stats
}

type UserScore struct {
	Name      string `json:"name"`
	Democracy int    `json:"democracy"`
	Tyrant    int    `json:"tyrant"`
}

type Settings struct {
	RequiredMembers   int `json:"requiredMembers"`
	CountdownSeconds  int `json:"countdownSeconds"`
	InterludeSeconds  int `json:"interludeSeconds"`
	PreSessionSeconds int `json:"preSessionSeconds"`
}

func DefaultSettings() Settings {
	return Settings{
		RequiredMembers:   DefaultRequiredMembers,
		CountdownSeconds:  DefaultCountdownSeconds,
		InterludeSeconds:  DefaultInterludeSeconds,
		PreSessionSeconds: DefaultPreSessionSeconds,
	}
}

// Normalize fills unset (zero or negative) fields with defaults.
func (s Settings) Normalize() Settings {
	d := DefaultSettings()
	if s.RequiredMembers <= 0 {
		s.RequiredMembers = d.RequiredMembers
	}
	if s.CountdownSeconds <= 0 {
		s.CountdownSeconds = d.CountdownSeconds
	}
	if s.InterludeSeconds <= 0 {
		s.InterludeSeconds = d.InterludeSeconds
	}
	if s.PreSessionSeconds <= 0 {
		s.PreSessionSeconds = d.PreSessionSeconds
	}
	return s
}

// Apply merges an administrator's patch into s. Zero values fall back the
// same way the web client expects: requiredMembers, interludeSeconds and
// preSessionSeconds to 1, countdownSeconds to the default. Lower bounds are
// then enforced.
func (s Settings) Apply(patch SettingsPatch) Settings {
	if v := patch.RequiredMembers; v != nil {
		s.RequiredMembers = atLeast(orDefault(*v, 1), 1)
	}
	if v := patch.CountdownSeconds; v != nil {
		s.CountdownSeconds = atLeast(orDefault(*v, DefaultCountdownSeconds), MinCountdownSeconds)
	}
	if v := patch.InterludeSeconds; v != nil {
		s.InterludeSeconds = atLeast(orDefault(*v, 1), 1)
	}
	if v := patch.PreSessionSeconds; v != nil {
		s.PreSessionSeconds = atLeast(orDefault(*v, 1), 1)
	}
	return s
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func atLeast(v, floor int) int {
	if v < floor {
		return floor
	}
	return v
}

// Session is the live state of the current round. VotingSet is frozen at
// round start and names who must vote; Attendees is everyone seen during the
// session, for display.
type Session struct {
	ID                   string            `json:"id"`
	ProposalID           string            `json:"proposalId"`
	StartedAt            int64             `json:"startedAt"` // epoch ms
	DurationSeconds      int               `json:"durationSeconds"`
	Votes                map[string]Choice `json:"votes"`
	Attendees            []string          `json:"attendees"`
	VotingSet            []string          `json:"votingSet"`
	Round                int               `json:"round"`
	Status               SessionStatus     `json:"status"`
	AwaitingAuthorAdjust bool              `json:"awaitingAuthorAdjust"`
	Reason               string            `json:"reason,omitempty"`
}

// Expired reports whether the round's countdown has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return now.UnixMilli() >= s.StartedAt+int64(s.DurationSeconds)*1000
}

func (s *Session) InVotingSet(name string) bool {
	return slices.Contains(s.VotingSet, name)
}

func (s *Session) HasVoted(name string) bool {
	_, ok := s.Votes[name]
	return ok
}

// AddAttendee records name as seen in this session. It reports whether the
// attendee list changed.
func (s *Session) AddAttendee(name string) bool {
	if slices.Contains(s.Attendees, name) {
		return false
	}
	s.Attendees = append(s.Attendees, name)
	return true
}

// DropVoter removes name from the voting set only.
func (s *Session) DropVoter(name string) {
	s.VotingSet = slices.DeleteFunc(s.VotingSet, func(n string) bool { return n == name })
}

// Forget removes every trace of name from the session.
func (s *Session) Forget(name string) {
	s.DropVoter(name)
	s.Attendees = slices.DeleteFunc(s.Attendees, func(n string) bool { return n == name })
	delete(s.Votes, name)
}

// AllVoted reports whether every member of a non-empty voting set has voted.
func (s *Session) AllVoted() bool {
	if len(s.VotingSet) == 0 {
		return false
	}
	for _, name := range s.VotingSet {
		if !s.HasVoted(name) {
			return false
		}
	}
	return true
}

// RequiredVotes returns the votes cast by members of the voting set.
func (s *Session) RequiredVotes() map[string]Choice {
	votes := make(map[string]Choice, len(s.VotingSet))
	for _, name := range s.VotingSet {
		if c, ok := s.Votes[name]; ok {
			votes[name] = c
		}
	}
	return votes
}

// Unanimous returns the shared choice of the voting set when every required
// voter picked the same option.
func (s *Session) Unanimous() (Choice, bool) {
	var only Choice
	for _, c := range s.RequiredVotes() {
		if only == "" {
			only = c
			continue
		}
		if c != only {
			return "", false
		}
	}
	return only, only != ""
}

// Tally counts accepts and rejects over the voting set.
func (s *Session) Tally() (accept, reject int) {
	for _, c := range s.RequiredVotes() {
		switch c {
		case ChoiceAccept:
			accept++
		case ChoiceReject:
			reject++
		}
	}
	return accept, reject
}

// Restart begins the next round of the same proposal with a fresh voting set.
func (s *Session) Restart(now time.Time, live []string, durationSeconds int) {
	s.Votes = make(map[string]Choice)
	s.StartedAt = now.UnixMilli()
	s.DurationSeconds = durationSeconds
	s.AwaitingAuthorAdjust = false
	s.Round++
	s.VotingSet = slices.Clone(live)
	for _, name := range live {
		s.AddAttendee(name)
	}
}

type MeetingItem struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Author        string         `json:"author"`
	Outcome       ProposalStatus `json:"outcome"`
	Rounds        int            `json:"rounds"`
	TotalVotingMs int64          `json:"totalVotingMs"`
	AcceptCount   int            `json:"acceptCount"`
	RejectCount   int            `json:"rejectCount"`
}

type Meeting struct {
	Status    MeetingStatus `json:"status"`
	StartedAt int64         `json:"startedAt"`
	EndedAt   int64         `json:"endedAt,omitempty"`
	Items     []MeetingItem `json:"items"`
}

// Summary is broadcast when a meeting ends.
type Summary struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Rejected int           `json:"rejected"`
	TotalMs  int64         `json:"totalMs"`
	AvgMs    int64         `json:"avgMs"`
	Fastest  *MeetingItem  `json:"fastest"`
	Slowest  *MeetingItem  `json:"slowest"`
	Items    []MeetingItem `json:"items"`
}

// Outcome describes the round that just resolved.
type Outcome struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Outcome ProposalStatus `json:"outcome"`
}

// State is the persisted document.
type State struct {
	Proposals []*Proposal           `json:"proposals"`
	Users     map[string]*UserScore `json:"users"`
	Settings  Settings              `json:"settings"`
}

func DefaultState(settings Settings) State {
	return State{
		Proposals: []*Proposal{},
		Users:     map[string]*UserScore{},
		Settings:  settings.Normalize(),
	}
}

// Normalize repairs a loaded document so that collections are never nil and
// settings carry defaults.
func (s State) Normalize() State {
	if s.Proposals == nil {
		s.Proposals = []*Proposal{}
	}
	s.Proposals = slices.DeleteFunc(s.Proposals, func(p *Proposal) bool { return p == nil })
	for _, p := range s.Proposals {
		if p.Comments == nil {
			p.Comments = []Comment{}
		}
		if p.Status == "" {
			p.Status = StatusOpen
		}
	}
	if s.Users == nil {
		s.Users = map[string]*UserScore{}
	}
	for name, u := range s.Users {
		if u == nil {
			s.Users[name] = &UserScore{Name: name}
		}
	}
	s.Settings = s.Settings.Normalize()
	return s
}

// Snapshot is the read-only export of the current state.
type Snapshot struct {
	State
	Live    []string `json:"live"`
	Session *Session `json:"session"`
}

type You struct {
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}

// ParseTime accepts RFC 3339 timestamps as well as the HTML datetime-local
// forms the web client produces. Zone-less values are read as UTC.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ErrorResponse is the JSON body of an HTTP error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
