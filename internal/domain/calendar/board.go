package calendar

import (
	"sync"
	"time"

	"github.com/soulsalutte/clinic/internal/domain/scheduling"
)

// Policy decides when a board shows the effect of a gesture.
type Policy int

const (
	// Confirmed changes the board only after the store accepted the change.
	Confirmed Policy = iota
	// Optimistic applies the target at once and restores the captured
	// record if the store refuses it.
	Optimistic
)

// Board is the in-process view state of a calendar window. It implements
// Observer, so passing it to a Coordinator keeps it in step with the gestures.
type Board struct {
	mu       sync.RWMutex
	policy   Policy
	sessions map[int64]*scheduling.Session
	busy     map[int64]bool
}

func NewBoard(policy Policy, sessions []*scheduling.Session) *Board {
	b := &Board{policy: policy, sessions: make(map[int64]*scheduling.Session), busy: make(map[int64]bool)}
	for _, s := range sessions {
		b.sessions[s.ID] = s.Clone()
	}
	return b
}

func (b *Board) Pending(g *Gesture) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.busy[g.SessionID] = true
	if b.policy != Optimistic {
		return
	}
	if s, ok := b.sessions[g.SessionID]; ok {
		g.Target.applyTo(s)
	}
}

func (b *Board) Settled(g *Gesture, s *scheduling.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.busy, g.SessionID)
	cur, ok := b.sessions[g.SessionID]
	if !ok {
		return
	}
	if g.Phase == PhaseCommitted && s != nil {
		b.sessions[g.SessionID] = s.Clone()
		return
	}
	g.Prior.applyTo(cur)
}

// Session returns a copy of the board's record for id.
func (b *Board) Session(id int64) (*scheduling.Session, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, ok := b.sessions[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Busy reports whether a gesture on id is pending on this board.
func (b *Board) Busy(id int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.busy[id]
}

// Sessions returns the board's records ordered by start.
func (b *Board) Sessions() []*scheduling.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*scheduling.Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		out = append(out, s.Clone())
	}
	sortSessions(out)
	return out
}

// Grid lays the board out over w. A session counts as busy when the board
// or external (if given) says so.
func (b *Board) Grid(w Window, external func(id int64) bool, loc *time.Location) Grid {
	return BuildGrid(w, b.Sessions(), func(id int64) bool {
		return b.Busy(id) || (external != nil && external(id))
	}, loc)
}
