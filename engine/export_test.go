// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import "github.com/danielhkuo/council/models"

// CurrentSession exposes the active session to tests driving Handle directly.
func (e *Engine) CurrentSession() *models.Session {
	return e.session
}

func (e *Engine) CurrentState() models.State {
	return e.state()
}

func (e *Engine) MeetingActive() bool {
	return e.meeting.Active()
}

func (e *Engine) InterludePending() bool {
	return e.interlude.pending()
}
