// Package presence tracks which users currently hold an open realtime
// connection.
package presence

import (
	"sort"
	"sync"
)

// Tracker counts open connections per user. A user is online while the
// count is positive.
type Tracker struct {
	mu    sync.RWMutex
	conns map[string]int
}

func NewTracker() *Tracker {
	return &Tracker{conns: make(map[string]int)}
}

// MarkOnline registers one more open connection and reports whether the
// user just went from offline to online.
func (t *Tracker) MarkOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.conns[userID]++
	return t.conns[userID] == 1
}

// MarkOffline drops one open connection and reports whether it was the
// user's last one.
func (t *Tracker) MarkOffline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.conns[userID]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(t.conns, userID)
		return true
	}
	t.conns[userID] = n - 1

	return false
}

func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.conns[userID]
	return ok
}

// Online returns the sorted ids of online users.
func (t *Tracker) Online() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.conns))
	for id := range t.conns {
		out = append(out, id)
	}
	t.mu.RUnlock()

	sort.Strings(out)
	return out
}

func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.conns)
}
