// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the domain types and the client wire protocol.

# Domain Types

  - Proposal: a queued decision, its comments and voting stats
  - Session: the round in progress (votes, voting set, round counter)
  - Meeting / MeetingItem / Summary: a run of resolved rounds
  - UserScore: democracy and tyrant points per member
  - Settings: requiredMembers, countdownSeconds, interludeSeconds, preSessionSeconds
  - State: the persisted document (proposals, users, settings)
  - Snapshot: State plus the live roster and current session

# Inbound Messages

Client messages form a closed set implementing Inbound:

	hello, createProposal, editProposal, deleteProposal, startSession,
	vote, authorAdjust, tyrant, updateSettings, deleteUser

	msg, err := models.DecodeInbound(data)
	switch m := msg.(type) {
	case *models.Vote:
		// ...
	}

# Outbound Events

Server events implement Outbound and are tagged on the wire by Type():

	welcome, state, live, session, preSession, interlude, ending,
	sound, reminder, toast

	data, err := models.EncodeOutbound(models.ToastEvent{Text: "hi"})
	// {"type":"toast","text":"hi"}

# Time Fields

Fields the web client treats as numbers (createdAt, startedAt, stats,
comment timestamps, reminder at) are epoch milliseconds. voteDeadline and
eventDate are RFC 3339 strings; ParseTime also accepts datetime-local input.
*/
package models
