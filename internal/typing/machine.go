// Package typing keeps per-pair typing indicators and expires them after a
// fixed window of inactivity.
package typing

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultTimeout = 5 * time.Second

// Pair identifies one direction of a conversation.
type Pair struct {
	SenderID   string
	ReceiverID string
}

// ExpireFunc is called once per expired indicator, outside the machine lock.
type ExpireFunc func(p Pair)

type entry struct {
	gen       uint64
	timer     clockwork.Timer
	expiresAt time.Time
}

// Machine moves each pair between Idle (no entry) and Typing (entry with one
// pending timer). A fired timer only counts if its generation still matches
// the entry, so a timer stopped too late never produces a second stop.
type Machine struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	timeout  time.Duration
	onExpire ExpireFunc
	entries  map[Pair]*entry
	seq      uint64
	closed   bool
}

func NewMachine(clock clockwork.Clock, timeout time.Duration, onExpire ExpireFunc) *Machine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Machine{
		clock:    clock,
		timeout:  timeout,
		onExpire: onExpire,
		entries:  make(map[Pair]*entry),
	}
}

// Start moves the pair to Typing, or extends the window if it already is.
// Returns true on the Idle→Typing transition.
func (m *Machine) Start(p Pair) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	e, exists := m.entries[p]
	if exists {
		e.timer.Stop()
	} else {
		e = &entry{}
		m.entries[p] = e
	}

	m.seq++
	gen := m.seq
	e.gen = gen
	e.expiresAt = m.clock.Now().Add(m.timeout)
	e.timer = m.clock.AfterFunc(m.timeout, func() { m.expire(p, gen) })

	return !exists
}

// Stop moves the pair back to Idle. Returns false if it was not typing.
func (m *Machine) Stop(p Pair) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.removeLocked(p)
}

func (m *Machine) IsTyping(p Pair) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[p]
	return ok
}

// ExpiresAt returns when the pair's indicator lapses, if it is active.
func (m *Machine) ExpiresAt(p Pair) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[p]
	if !ok {
		return time.Time{}, false
	}
	return e.expiresAt, true
}

// CancelUser drops every pair the user takes part in without calling
// onExpire. It returns the pairs where the user was the sender so the caller
// can tell those receivers that typing stopped.
func (m *Machine) CancelUser(userID string) []Pair {
	m.mu.Lock()
	defer m.mu.Unlock()

	var asSender []Pair
	for p := range m.entries {
		if p.SenderID != userID && p.ReceiverID != userID {
			continue
		}
		m.removeLocked(p)
		if p.SenderID == userID {
			asSender = append(asSender, p)
		}
	}

	return asSender
}

// Len returns the number of active indicators.
func (m *Machine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// Close cancels all pending timers; Start is a no-op afterwards.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for p := range m.entries {
		m.removeLocked(p)
	}
	m.closed = true
}

func (m *Machine) removeLocked(p Pair) bool {
	e, ok := m.entries[p]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(m.entries, p)

	return true
}

func (m *Machine) expire(p Pair, gen uint64) {
	m.mu.Lock()
	e, ok := m.entries[p]
	if !ok || e.gen != gen {
		m.mu.Unlock()
		return
	}
	delete(m.entries, p)
	m.mu.Unlock()

	if m.onExpire != nil {
		m.onExpire(p)
	}
}
