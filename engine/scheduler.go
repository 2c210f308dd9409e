// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Scheduler delivers ev back into the engine after d. The returned cancel
// function stops delivery if it has not happened yet.
type Scheduler interface {
	After(d time.Duration, ev Event) (cancel func())
}

// afterFuncScheduler enqueues fired timers into the same channel as client
// messages so they are processed on the engine goroutine.
type afterFuncScheduler struct {
	submit func(Event)
}

func (s afterFuncScheduler) After(d time.Duration, ev Event) func() {
	t := time.AfterFunc(d, func() { s.submit(ev) })
	return func() { t.Stop() }
}

type timerKind int

const (
	timerPreSession timerKind = iota + 1
	timerInterlude
)

func (k timerKind) String() string {
	switch k {
	case timerPreSession:
		return "pre-session"
	case timerInterlude:
		return "interlude"
	}
	return "unknown"
}

// timerFired is delivered by the Scheduler. seq identifies which arming of
// the countdown it belongs to.
type timerFired struct {
	kind timerKind
	seq  uint64
}

func (timerFired) event() {}

// countdown is a single re-armable timer. Arming replaces any pending
// firing; a firing from an earlier arming is ignored.
type countdown struct {
	kind   timerKind
	seq    uint64
	cancel func()
}

func (c *countdown) arm(s Scheduler, d time.Duration) {
	c.stop()
	c.seq++
	c.cancel = s.After(d, timerFired{kind: c.kind, seq: c.seq})
}

func (c *countdown) stop() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *countdown) pending() bool {
	return c.cancel != nil
}

// fire consumes a firing and reports whether it is current.
func (c *countdown) fire(seq uint64) bool {
	if c.cancel == nil || seq != c.seq {
		return false
	}
	c.cancel = nil
	return true
}
