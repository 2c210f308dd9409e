// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/danielhkuo/council/auth"
	"github.com/danielhkuo/council/meeting"
	"github.com/danielhkuo/council/models"
	"github.com/danielhkuo/council/presence"
	"github.com/danielhkuo/council/proposals"
)

const (
	tickInterval = time.Second
	queueSize    = 256
)

var (
	ErrStopped       = errors.New("engine stopped")
	ErrMissingStore  = errors.New("engine requires a store")
	ErrMissingOutput = errors.New("engine requires a broadcaster")
)

// Broadcaster delivers events to connected clients. Implementations must
// encode ev before returning; the engine keeps mutating the values it sends.
type Broadcaster interface {
	SendToAll(ev models.Outbound)
	SendTo(connID string, ev models.Outbound)
}

// Store is the durable state boundary.
type Store interface {
	Load(ctx context.Context) (models.State, error)
	Save(ctx context.Context, state models.State) error
}

// Event is anything the engine goroutine processes.
type Event interface {
	event()
}

// Message is an inbound client message from connection ConnID.
type Message struct {
	ConnID string
	Msg    models.Inbound
}

// Disconnected reports that a connection closed.
type Disconnected struct {
	ConnID string
}

// Tick drives the active round's timeout check.
type Tick struct{}

type snapshotQuery struct {
	reply chan []byte
}

func (Message) event()       {}
func (Disconnected) event()  {}
func (Tick) event()          {}
func (snapshotQuery) event() {}

type Dependencies struct {
	Store       Store
	Broadcaster Broadcaster
	Clock       Clock
	Scheduler   Scheduler
	AdminName   string
	Logger      *slog.Logger
}

// Engine owns the session, meeting, presence and proposal state. All state
// is touched only from Handle, which Run calls on a single goroutine.
type Engine struct {
	store     Store
	out       Broadcaster
	clock     Clock
	sched     Scheduler
	adminName string
	logger    *slog.Logger

	events chan Event
	done   chan struct{}

	settings  models.Settings
	users     map[string]*models.UserScore
	proposals *proposals.Store
	presence  *presence.Tracker
	meeting   meeting.Aggregator
	session   *models.Session

	preSession countdown
	interlude  countdown
}

// New builds an engine and restores state from the store. A load failure is
// logged and the engine starts from defaults.
func New(ctx context.Context, deps Dependencies) (*Engine, error) {
	if deps.Store == nil {
		return nil, ErrMissingStore
	}
	if deps.Broadcaster == nil {
		return nil, ErrMissingOutput
	}

	e := &Engine{
		store:     deps.Store,
		out:       deps.Broadcaster,
		clock:     deps.Clock,
		sched:     deps.Scheduler,
		adminName: deps.AdminName,
		logger:    deps.Logger,
		events:    make(chan Event, queueSize),
		done:      make(chan struct{}),
	}
	if e.clock == nil {
		e.clock = systemClock{}
	}
	if e.sched == nil {
		e.sched = afterFuncScheduler{submit: e.Submit}
	}
	if e.adminName == "" {
		e.adminName = auth.DefaultAdminName
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	state, err := e.store.Load(ctx)
	if err != nil {
		e.logger.Error("failed to load state, starting empty", "error", err)
		state = models.DefaultState(models.DefaultSettings())
	}
	e.Reset(state)
	return e, nil
}

// Reset replaces the persisted state and clears everything transient:
// session, meeting, timers and presence.
func (e *Engine) Reset(state models.State) {
	e.preSession.stop()
	e.interlude.stop()
	e.preSession.kind = timerPreSession
	e.interlude.kind = timerInterlude

	state = state.Normalize()
	e.settings = state.Settings
	e.users = state.Users
	e.proposals = proposals.NewStore(state.Proposals)
	e.presence = presence.New()
	e.meeting.Reset()
	e.session = nil
}

// Run processes events until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	defer close(e.done)

	e.logger.Info("engine started")
	for {
		select {
		case <-ctx.Done():
			e.preSession.stop()
			e.interlude.stop()
			e.logger.Info("engine stopped")
			return ctx.Err()
		case ev := <-e.events:
			e.Handle(ev)
		case <-ticker.C:
			e.Handle(Tick{})
		}
	}
}

// Submit queues ev for the engine goroutine. Safe for concurrent use.
func (e *Engine) Submit(ev Event) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

// Deliver queues a client message.
func (e *Engine) Deliver(connID string, msg models.Inbound) {
	e.Submit(Message{ConnID: connID, Msg: msg})
}

// Disconnect queues a connection close.
func (e *Engine) Disconnect(connID string) {
	e.Submit(Disconnected{ConnID: connID})
}

// Snapshot returns the JSON export of the current state, encoded on the
// engine goroutine.
func (e *Engine) Snapshot(ctx context.Context) ([]byte, error) {
	q := snapshotQuery{reply: make(chan []byte, 1)}
	select {
	case e.events <- q:
	case <-e.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case data := <-q.reply:
		return data, nil
	case <-e.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Handle processes one event to completion. Only the engine goroutine (or a
// test driving the engine directly) may call it.
func (e *Engine) Handle(ev Event) {
	switch ev := ev.(type) {
	case Message:
		e.dispatch(ev.ConnID, ev.Msg)
	case Disconnected:
		e.disconnect(ev.ConnID)
	case Tick:
		e.tick()
	case timerFired:
		e.timerFired(ev)
	case snapshotQuery:
		data, err := json.Marshal(e.snapshot())
		if err != nil {
			e.logger.Error("failed to encode snapshot", "error", err)
		}
		ev.reply <- data
	default:
		e.logger.Warn("unhandled engine event", "event", ev)
	}
}

func (e *Engine) state() models.State {
	return models.State{
		Proposals: e.proposals.All(),
		Users:     e.users,
		Settings:  e.settings,
	}
}

func (e *Engine) snapshot() models.Snapshot {
	return models.Snapshot{
		State:   e.state(),
		Live:    e.presence.LiveNames(),
		Session: e.session,
	}
}

// persist writes through to the store. Failures are logged and the
// in-memory state carries on.
func (e *Engine) persist() {
	if err := e.store.Save(context.Background(), e.state()); err != nil {
		e.logger.Error("failed to save state", "error", err)
	}
}

func (e *Engine) broadcast(ev models.Outbound) {
	e.out.SendToAll(ev)
}

func (e *Engine) toast(connID, text string) {
	e.out.SendTo(connID, models.ToastEvent{Text: text})
}

func (e *Engine) isAdmin(name string) bool {
	return auth.IsAdmin(name, e.adminName)
}
