package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrEventNotObject = errors.New("event did not encode to a JSON object")
)

// Inbound is a message sent by a client. The set of implementations is
// closed; DecodeInbound is the only constructor used by the transport.
type Inbound interface {
	inbound()
}

type Hello struct {
	Name string `json:"name"`
}

type ProposalDraft struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	VoteDeadline string `json:"voteDeadline"`
	EventDate    string `json:"eventDate"`
}

type CreateProposal struct {
	Payload ProposalDraft `json:"payload"`
}

// ProposalPatch carries the fields an edit changes; nil means unchanged.
// An empty EventDate clears the event date.
type ProposalPatch struct {
	Title        *string         `json:"title"`
	Description  *string         `json:"description"`
	VoteDeadline *string         `json:"voteDeadline"`
	EventDate    *string         `json:"eventDate"`
	Status       *ProposalStatus `json:"status"`
}

type EditProposal struct {
	ID    string        `json:"id"`
	Patch ProposalPatch `json:"patch"`
}

type DeleteProposal struct {
	ID string `json:"id"`
}

type StartSession struct{}

type Vote struct {
	Choice Choice `json:"choice"`
}

type AuthorAdjust struct {
	ProposalID string `json:"proposalId"`
	Text       string `json:"text"`
	EventDate  string `json:"eventDate"`
}

type Tyrant struct {
	Action TyrantAction `json:"action"`
}

type SettingsPatch struct {
	RequiredMembers   *int `json:"requiredMembers"`
	CountdownSeconds  *int `json:"countdownSeconds"`
	InterludeSeconds  *int `json:"interludeSeconds"`
	PreSessionSeconds *int `json:"preSessionSeconds"`
}

// UnmarshalJSON accepts any JSON number and truncates it toward zero, so a
// fractional value from a number input still updates the setting.
func (p *SettingsPatch) UnmarshalJSON(data []byte) error {
	var raw struct {
		RequiredMembers   *float64 `json:"requiredMembers"`
		CountdownSeconds  *float64 `json:"countdownSeconds"`
		InterludeSeconds  *float64 `json:"interludeSeconds"`
		PreSessionSeconds *float64 `json:"preSessionSeconds"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = SettingsPatch{
		RequiredMembers:   truncate(raw.RequiredMembers),
		CountdownSeconds:  truncate(raw.CountdownSeconds),
		InterludeSeconds:  truncate(raw.InterludeSeconds),
		PreSessionSeconds: truncate(raw.PreSessionSeconds),
	}
	return nil
}

func truncate(v *float64) *int {
	if v == nil {
		return nil
	}
	f := math.Trunc(*v)
	switch {
	case f > math.MaxInt32:
		f = math.MaxInt32
	case f < math.MinInt32:
		f = math.MinInt32
	}
	n := int(f)
	return &n
}

type UpdateSettings struct {
	Settings SettingsPatch `json:"settings"`
}

type DeleteUser struct {
	Name string `json:"name"`
}

func (*Hello) inbound()          {}
func (*CreateProposal) inbound() {}
func (*EditProposal) inbound()   {}
func (*DeleteProposal) inbound() {}
func (*StartSession) inbound()   {}
func (*Vote) inbound()           {}
func (*AuthorAdjust) inbound()   {}
func (*Tyrant) inbound()         {}
func (*UpdateSettings) inbound() {}
func (*DeleteUser) inbound()     {}

// DecodeInbound parses a tagged client message.
func DecodeInbound(data []byte) (Inbound, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}

	var msg Inbound
	switch head.Type {
	case "hello":
		msg = &Hello{}
	case "createProposal":
		msg = &CreateProposal{}
	case "editProposal":
		msg = &EditProposal{}
	case "deleteProposal":
		msg = &DeleteProposal{}
	case "startSession":
		msg = &StartSession{}
	case "vote":
		msg = &Vote{}
	case "authorAdjust":
		msg = &AuthorAdjust{}
	case "tyrant":
		msg = &Tyrant{}
	case "updateSettings":
		msg = &UpdateSettings{}
	case "deleteUser":
		msg = &DeleteUser{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, head.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to decode %s message: %w", head.Type, err)
	}
	return msg, nil
}

// Outbound is an event sent to clients. Type is the wire tag.
type Outbound interface {
	Type() string
	outbound()
}

type WelcomeEvent struct {
	State Snapshot `json:"state"`
	You   You      `json:"you"`
}

// StatePatch is a partial state sync. Nil fields are omitted; a non-nil
// empty proposal list is sent as [].
type StatePatch struct {
	Proposals []*Proposal
	Users     map[string]*UserScore
	Settings  *Settings
}

func (p StatePatch) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3)
	if p.Proposals != nil {
		out["proposals"] = p.Proposals
	}
	if p.Users != nil {
		out["users"] = p.Users
	}
	if p.Settings != nil {
		out["settings"] = p.Settings
	}
	return json.Marshal(out)
}

type StateEvent struct {
	Patch StatePatch `json:"patch"`
}

type LiveEvent struct {
	Live []string `json:"live"`
}

type SessionEvent struct {
	Session *Session `json:"session"`
}

type PreSessionEvent struct {
	Seconds int    `json:"seconds"`
	Text    string `json:"text"`
}

type InterludeEvent struct {
	Seconds     int      `json:"seconds"`
	Text        string   `json:"text"`
	LastOutcome *Outcome `json:"lastOutcome"`
}

type EndingEvent struct {
	Summary Summary `json:"summary"`
}

// Sound cues
type SoundKind string

const (
	SoundStart  SoundKind = "start"
	SoundPass   SoundKind = "pass"
	SoundReject SoundKind = "reject"
	SoundGavel  SoundKind = "gavel"
)

type SoundEvent struct {
	Kind SoundKind `json:"kind"`
}

type ReminderEvent struct {
	At    int64  `json:"at"` // epoch ms
	Title string `json:"title"`
}

type ToastEvent struct {
	Text string `json:"text"`
}

func (WelcomeEvent) Type() string    { return "welcome" }
func (StateEvent) Type() string      { return "state" }
func (LiveEvent) Type() string       { return "live" }
func (SessionEvent) Type() string    { return "session" }
func (PreSessionEvent) Type() string { return "preSession" }
func (InterludeEvent) Type() string  { return "interlude" }
func (EndingEvent) Type() string     { return "ending" }
func (SoundEvent) Type() string      { return "sound" }
func (ReminderEvent) Type() string   { return "reminder" }
func (ToastEvent) Type() string      { return "toast" }

func (WelcomeEvent) outbound()    {}
func (StateEvent) outbound()      {}
func (LiveEvent) outbound()       {}
func (SessionEvent) outbound()    {}
func (PreSessionEvent) outbound() {}
func (InterludeEvent) outbound()  {}
func (EndingEvent) outbound()     {}
func (SoundEvent) outbound()      {}
func (ReminderEvent) outbound()   {}
func (ToastEvent) outbound()      {}

// EncodeOutbound marshals ev with its "type" tag as the first key.
func EncodeOutbound(ev Outbound) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", ev.Type(), err)
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%w: %s", ErrEventNotObject, ev.Type())
	}

	tag, _ := json.Marshal(ev.Type())
	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if rest := bytes.TrimSpace(body[1:]); len(rest) > 0 && rest[0] != '}' {
		buf.WriteByte(',')
	}
	buf.Write(body[1:])
	return buf.Bytes(), nil
}
