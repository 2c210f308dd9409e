// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"errors"
	"strings"

	"github.com/danielhkuo/council/models"
	"github.com/danielhkuo/council/proposals"
	"github.com/danielhkuo/council/scoring"
)

const (
	toastNameRequired  = "Please enter a name"
	toastTitleRequired = "A proposal needs a title"
)

// dispatch routes a client message. Everything except hello requires the
// connection to have introduced itself.
func (e *Engine) dispatch(connID string, msg models.Inbound) {
	if hello, ok := msg.(*models.Hello); ok {
		e.hello(connID, hello.Name)
		return
	}

	name := e.presence.NameOf(connID)
	if name == "" {
		e.logger.Debug("message before hello dropped", "conn", connID)
		return
	}

	switch m := msg.(type) {
	case *models.CreateProposal:
		e.createProposal(connID, name, m.Payload)
	case *models.EditProposal:
		e.editProposal(name, m)
	case *models.DeleteProposal:
		e.deleteProposal(name, m.ID)
	case *models.StartSession:
		e.startSession(connID)
	case *models.Vote:
		e.vote(name, m.Choice)
	case *models.AuthorAdjust:
		e.authorAdjust(name, m)
	case *models.Tyrant:
		e.tyrant(name, m.Action)
	case *models.UpdateSettings:
		e.updateSettings(name, m.Settings)
	case *models.DeleteUser:
		e.deleteUser(name, m.Name)
	default:
		e.logger.Warn("unhandled message", "conn", connID, "type", msg)
	}
}

func (e *Engine) hello(connID, raw string) {
	name := strings.TrimSpace(raw)
	if name == "" {
		e.toast(connID, toastNameRequired)
		return
	}

	if prev := e.presence.Join(connID, name); prev != "" && prev != name {
		e.departed(prev)
	}
	scoring.User(e.users, name)
	if e.sessionActive() && e.session.AddAttendee(name) {
		e.broadcast(models.SessionEvent{Session: e.session})
	}
	e.logger.Info("member joined", "name", name, "conn", connID)

	e.persist()
	e.out.SendTo(connID, models.WelcomeEvent{
		State: e.snapshot(),
		You:   models.You{Name: name, IsAdmin: e.isAdmin(name)},
	})
	e.broadcast(models.LiveEvent{Live: e.presence.LiveNames()})
}

func (e *Engine) disconnect(connID string) {
	name, stillLive := e.presence.Leave(connID)
	if name == "" {
		return
	}
	if !stillLive {
		e.logger.Info("member left", "name", name)
		e.departed(name)
	}
	e.broadcast(models.LiveEvent{Live: e.presence.LiveNames()})
}

// departed drops a member who is no longer live from the pending voters of
// the active round. Votes already cast are kept.
func (e *Engine) departed(name string) {
	if e.presence.IsLive(name) || !e.sessionActive() {
		return
	}
	s := e.session
	if !s.InVotingSet(name) || s.HasVoted(name) {
		return
	}
	s.DropVoter(name)
	e.broadcast(models.SessionEvent{Session: s})
	e.reevaluate()
}

func (e *Engine) createProposal(connID, author string, draft models.ProposalDraft) {
	p, err := e.proposals.Create(draft, author, e.clock.Now())
	if err != nil {
		if errors.Is(err, proposals.ErrTitleRequired) {
			e.toast(connID, toastTitleRequired)
			return
		}
		e.logger.Error("failed to create proposal", "error", err)
		return
	}
	e.logger.Info("proposal created", "proposal", p.ID, "author", author)

	e.persist()
	e.broadcast(models.StateEvent{Patch: models.StatePatch{Proposals: e.proposals.All()}})
}

func (e *Engine) editProposal(name string, m *models.EditProposal) {
	if err := e.proposals.Edit(m.ID, m.Patch, name, e.isAdmin(name)); err != nil {
		e.logger.Debug("edit rejected", "proposal", m.ID, "by", name, "error", err)
		return
	}
	e.persist()
	e.broadcast(models.StateEvent{Patch: models.StatePatch{Proposals: e.proposals.All()}})
}

func (e *Engine) deleteProposal(name, id string) {
	if !e.isAdmin(name) {
		e.logger.Debug("delete rejected", "proposal", id, "by", name, "error", proposals.ErrForbidden)
		return
	}
	if e.proposals.Get(id) == nil {
		e.logger.Debug("delete rejected", "proposal", id, "error", proposals.ErrNotFound)
		return
	}
	if e.sessionActive() && e.session.ProposalID == id {
		e.endSession(models.ReasonProposalDeleted)
	}
	if err := e.proposals.Delete(id, true); err != nil {
		e.logger.Debug("delete rejected", "proposal", id, "error", err)
		return
	}
	e.logger.Info("proposal deleted", "proposal", id)

	e.persist()
	e.broadcast(models.StateEvent{Patch: models.StatePatch{Proposals: e.proposals.All()}})
}

// updateSettings applies to rounds started afterwards; the active round keeps
// its duration.
func (e *Engine) updateSettings(name string, patch models.SettingsPatch) {
	if !e.isAdmin(name) {
		e.logger.Debug("settings update rejected", "by", name)
		return
	}
	e.settings = e.settings.Apply(patch)
	e.logger.Info("settings updated", "settings", e.settings)

	e.persist()
	settings := e.settings
	e.broadcast(models.StateEvent{Patch: models.StatePatch{Settings: &settings}})
}

func (e *Engine) deleteUser(name, target string) {
	if !e.isAdmin(name) {
		e.logger.Debug("user delete rejected", "by", name)
		return
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return
	}
	delete(e.users, target)

	if e.sessionActive() {
		s := e.session
		s.Forget(target)
		e.broadcast(models.SessionEvent{Session: s})
		if len(s.VotingSet) == 0 {
			e.endSession(models.ReasonNoVoters)
		} else {
			e.reevaluate()
		}
	}
	e.logger.Info("user deleted", "name", target)

	e.persist()
	e.broadcast(models.StateEvent{Patch: models.StatePatch{Users: e.users}})
}
