// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/danielhkuo/council/engine"
	"github.com/danielhkuo/council/models"
)

var ErrSaveFailed = errors.New("save failed")

// FakeClock is a manually advanced clock
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock() *FakeClock {
	return &FakeClock{now: Epoch}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *FakeClock) set(t time.Time) {
	c.mu.Lock()
	if t.After(c.now) {
		c.now = t
	}
	c.mu.Unlock()
}

type manualTimer struct {
	due       time.Time
	ev        engine.Event
	cancelled bool
	fired     bool
}

// ManualScheduler holds timers until the test advances time
type ManualScheduler struct {
	mu     sync.Mutex
	clock  *FakeClock
	timers []*manualTimer
}

func NewManualScheduler(clock *FakeClock) *ManualScheduler {
	return &ManualScheduler{clock: clock}
}

func (s *ManualScheduler) After(d time.Duration, ev engine.Event) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{due: s.clock.Now().Add(d), ev: ev}
	s.timers = append(s.timers, t)
	return func() {
		s.mu.Lock()
		t.cancelled = true
		s.mu.Unlock()
	}
}

// Pending counts timers that are neither cancelled nor fired
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.cancelled && !t.fired {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, delivering every timer that comes
// due to handle in due order. Timers armed by handle are honoured if they
// fall inside the window.
func (s *ManualScheduler) Advance(d time.Duration, handle func(engine.Event)) {
	target := s.clock.Now().Add(d)
	for {
		t := s.nextDue(target)
		if t == nil {
			break
		}
		s.clock.set(t.due)
		handle(t.ev)
	}
	s.clock.set(target)
}

// FireAll delivers every pending timer, including cancelled ones, without
// moving the clock. It lets tests check that stale firings are ignored.
func (s *ManualScheduler) FireAll(handle func(engine.Event)) {
	s.mu.Lock()
	timers := append([]*manualTimer(nil), s.timers...)
	s.mu.Unlock()
	for _, t := range timers {
		handle(t.ev)
	}
}

func (s *ManualScheduler) nextDue(target time.Time) *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *manualTimer
	for _, t := range s.timers {
		if t.cancelled || t.fired || t.due.After(target) {
			continue
		}
		if next == nil || t.due.Before(next.due) {
			next = t
		}
	}
	if next != nil {
		next.fired = true
	}
	return next
}

// Sent is one event captured by Recorder. ConnID is empty for broadcasts.
type Sent struct {
	ConnID string
	Event  models.Outbound
	Raw    []byte
}

// Recorder is a Broadcaster that keeps everything it is asked to send.
// Raw holds the encoding at send time, since the engine keeps mutating the
// session it broadcasts.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
}

func (r *Recorder) SendToAll(ev models.Outbound) {
	r.record("", ev)
}

func (r *Recorder) SendTo(connID string, ev models.Outbound) {
	r.record(connID, ev)
}

func (r *Recorder) record(connID string, ev models.Outbound) {
	raw, _ := models.EncodeOutbound(ev)
	r.mu.Lock()
	r.sent = append(r.sent, Sent{ConnID: connID, Event: ev, Raw: raw})
	r.mu.Unlock()
}

func (r *Recorder) All() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}

// Types lists the wire tags of everything sent, in order
func (r *Recorder) Types() []string {
	var out []string
	for _, s := range r.All() {
		out = append(out, s.Event.Type())
	}
	return out
}

// ToastsTo returns the toast texts sent to connID
func (r *Recorder) ToastsTo(connID string) []string {
	var out []string
	for _, s := range r.All() {
		if t, ok := s.Event.(models.ToastEvent); ok && s.ConnID == connID {
			out = append(out, t.Text)
		}
	}
	return out
}

// Sessions decodes every session event as it looked when it was sent
func (r *Recorder) Sessions() []*models.Session {
	var out []*models.Session
	for _, s := range r.All() {
		if _, ok := s.Event.(models.SessionEvent); !ok {
			continue
		}
		var ev struct {
			Session *models.Session `json:"session"`
		}
		if err := json.Unmarshal(s.Raw, &ev); err == nil {
			out = append(out, ev.Session)
		}
	}
	return out
}

// Find returns every captured event of type T
func Find[T models.Outbound](r *Recorder) []T {
	var out []T
	for _, s := range r.All() {
		if ev, ok := s.Event.(T); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Last returns the most recent captured event of type T
func Last[T models.Outbound](r *Recorder) (T, bool) {
	found := Find[T](r)
	if len(found) == 0 {
		var zero T
		return zero, false
	}
	return found[len(found)-1], true
}

// MemoryStore keeps the state document in memory as JSON, so loads and
// saves never share pointers with the engine
type MemoryStore struct {
	mu        sync.Mutex
	doc       []byte
	saves     int
	LoadErr   error
	FailSaves bool
}

func NewMemoryStore(state models.State) *MemoryStore {
	doc, _ := json.Marshal(state)
	return &MemoryStore{doc: doc}
}

func (m *MemoryStore) Load(ctx context.Context) (models.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return models.State{}, m.LoadErr
	}
	var state models.State
	if len(m.doc) > 0 {
		if err := json.Unmarshal(m.doc, &state); err != nil {
			return models.State{}, err
		}
	}
	return state.Normalize(), nil
}

func (m *MemoryStore) Save(ctx context.Context, state models.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return ErrSaveFailed
	}
	doc, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.doc = doc
	m.saves++
	return nil
}

func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Saved returns the last document written
func (m *MemoryStore) Saved() models.State {
	state, _ := (&MemoryStore{doc: m.snapshot()}).Load(context.Background())
	return state
}

func (m *MemoryStore) snapshot() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.doc...)
}

// SortedNames returns the keys of a user map in order
func SortedNames(users map[string]*models.UserScore) []string {
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
