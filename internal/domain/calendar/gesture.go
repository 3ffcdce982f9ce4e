package calendar

import (
	"time"

	"github.com/soulsalutte/clinic/internal/domain/scheduling"
	"github.com/soulsalutte/clinic/internal/platform/apperr"
)

type Kind string

const (
	KindDrag   Kind = "drag"
	KindResize Kind = "resize"
	KindStatus Kind = "status"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePending    Phase = "pending"
	PhaseCommitted  Phase = "committed"
	PhaseRolledBack Phase = "rolled_back"
)

// Snapshot is the part of a session a gesture can change.
type Snapshot struct {
	Start  time.Time
	End    time.Time
	Status scheduling.Status
}

func snapshotOf(s *scheduling.Session) Snapshot {
	return Snapshot{Start: s.Start, End: s.End, Status: s.Status}
}

func (sn Snapshot) applyTo(s *scheduling.Session) {
	s.Start, s.End, s.Status = sn.Start, sn.End, sn.Status
}

// Gesture tracks one user gesture on one session through
// idle -> pending -> committed | rolled_back.
type Gesture struct {
	ID        string
	Kind      Kind
	SessionID int64
	Phase     Phase
	Prior     Snapshot
	Target    Snapshot
}

var transitions = map[Phase][]Phase{
	PhaseIdle:    {PhasePending},
	PhasePending: {PhaseCommitted, PhaseRolledBack},
}

func (g *Gesture) advance(to Phase) error {
	for _, next := range transitions[g.Phase] {
		if next == to {
			g.Phase = to
			return nil
		}
	}
	return apperr.Conflict("gesture %s cannot move from %s to %s", g.ID, g.Phase, to)
}

// Settled reports whether the gesture reached a final phase.
func (g *Gesture) Settled() bool {
	return g.Phase == PhaseCommitted || g.Phase == PhaseRolledBack
}

// DragTarget moves s so that it starts at the slot containing drop. The
// duration is kept.
func DragTarget(s *scheduling.Session, drop time.Time, loc *time.Location) (start, end time.Time) {
	start = Snap(drop, loc)
	return start, start.Add(s.Duration())
}

// ResizeTarget keeps the start of s and ends it at the slot boundary at or
// before newEnd.
func ResizeTarget(s *scheduling.Session, newEnd time.Time, loc *time.Location) (start, end time.Time, err error) {
	end = Snap(newEnd, loc)
	if !end.After(s.Start) {
		return time.Time{}, time.Time{}, apperr.Validation("a session must end after it starts")
	}
	return s.Start, end, nil
}
