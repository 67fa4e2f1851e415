// Package permission decides which sender roles may address which receiver
// roles over the realtime channel.
package permission

import (
	"sort"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

// Rules maps a sender role to the receiver roles it may address.
type Rules map[domain.Role][]domain.Role

// Gate is an immutable, directional role matrix. It is safe for concurrent
// use without locking because it never changes after NewGate returns.
type Gate struct {
	allowed map[domain.Role]map[domain.Role]struct{}
}

func NewGate(rules Rules) *Gate {
	g := &Gate{allowed: make(map[domain.Role]map[domain.Role]struct{}, len(rules))}
	for sender, receivers := range rules {
		set := make(map[domain.Role]struct{}, len(receivers))
		for _, r := range receivers {
			set[r] = struct{}{}
		}
		g.allowed[sender] = set
	}

	return g
}

// CanMessage reports whether sender may address receiver. Allowing a→b says
// nothing about b→a.
func (g *Gate) CanMessage(sender, receiver domain.Role) bool {
	if g == nil {
		return false
	}
	_, ok := g.allowed[sender][receiver]
	return ok
}

// Rules returns a sorted copy of the matrix.
func (g *Gate) Rules() Rules {
	out := make(Rules, len(g.allowed))
	for sender, set := range g.allowed {
		receivers := make([]domain.Role, 0, len(set))
		for r := range set {
			receivers = append(receivers, r)
		}
		sort.Slice(receivers, func(i, j int) bool { return receivers[i] < receivers[j] })
		out[sender] = receivers
	}

	return out
}
