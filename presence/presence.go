// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package presence

import "slices"

// Tracker maps live connections to member names. One member may hold
// several connections. Not safe for concurrent use; the engine owns it.
type Tracker struct {
	conns map[string]string // connID -> name
	order []string          // connIDs in join order
}

func New() *Tracker {
	return &Tracker{conns: make(map[string]string)}
}

// Join binds connID to name. Rebinding an existing connection returns the
// name it previously carried.
func (t *Tracker) Join(connID, name string) (previous string) {
	previous, existed := t.conns[connID]
	t.conns[connID] = name
	if !existed {
		t.order = append(t.order, connID)
	}
	return previous
}

// Leave drops connID and reports which name it carried and whether that
// name is still live through another connection.
func (t *Tracker) Leave(connID string) (name string, stillLive bool) {
	name, ok := t.conns[connID]
	if !ok {
		return "", false
	}
	delete(t.conns, connID)
	t.order = slices.DeleteFunc(t.order, func(id string) bool { return id == connID })
	return name, t.IsLive(name)
}

func (t *Tracker) NameOf(connID string) string {
	return t.conns[connID]
}

func (t *Tracker) IsLive(name string) bool {
	for _, n := range t.conns {
		if n == name {
			return true
		}
	}
	return false
}

// LiveNames returns the de-duplicated roster ordered by first connection.
func (t *Tracker) LiveNames() []string {
	names := make([]string, 0, len(t.order))
	for _, id := range t.order {
		if name := t.conns[id]; !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// Count is the number of distinct live members.
func (t *Tracker) Count() int {
	return len(t.LiveNames())
}
