package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/soulsalutte/clinic/internal/domain/scheduling"
	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/internal/platform/inflight"
	"github.com/soulsalutte/clinic/internal/platform/metrics"
)

// Store is the part of the session store the calendar needs.
// *scheduling.Service satisfies it.
type Store interface {
	Get(ctx context.Context, id int64) (*scheduling.Session, error)
	ListByDateRange(ctx context.Context, start, end time.Time) ([]*scheduling.Session, error)
	Reschedule(ctx context.Context, id int64, start, end time.Time) (*scheduling.Session, error)
	SetStatus(ctx context.Context, id int64, status string) (*scheduling.Session, error)
}

// Observer receives gesture progress. Boards use it to apply optimistic state
// and to reconcile once the store has answered.
type Observer interface {
	Pending(g *Gesture)
	Settled(g *Gesture, s *scheduling.Session)
}

// Outcome is the settled result of a gesture. On failure Session holds the
// record as it was before the gesture and Err the classified cause.
type Outcome struct {
	Gesture           *Gesture
	Session           *scheduling.Session
	Message           string
	CloseQuickActions bool
	Err               error
}

// Coordinator turns gestures into session mutations, one at a time per
// session.
type Coordinator struct {
	store   Store
	guard   inflight.Guard
	metrics *metrics.Metrics
	logger  zerolog.Logger
	loc     *time.Location
}

func NewCoordinator(store Store, guard inflight.Guard, m *metrics.Metrics, logger zerolog.Logger, loc *time.Location) *Coordinator {
	if guard == nil {
		guard = inflight.NewMemoryGuard()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Coordinator{store: store, guard: guard, metrics: m, logger: logger, loc: loc}
}

// Busy reports whether a mutation of session id is in flight.
func (c *Coordinator) Busy(ctx context.Context, id int64) bool {
	return c.guard.Held(ctx, scheduling.GuardKey(id))
}

// BusySet reports which of ids have a mutation in flight, with one guard
// lookup for the whole set.
func (c *Coordinator) BusySet(ctx context.Context, ids []int64) map[int64]bool {
	keys := make([]string, len(ids))
	byKey := make(map[string]int64, len(ids))
	for i, id := range ids {
		keys[i] = scheduling.GuardKey(id)
		byKey[keys[i]] = id
	}
	busy := make(map[int64]bool)
	for k := range c.guard.HeldKeys(ctx, keys) {
		busy[byKey[k]] = true
	}
	return busy
}

// Drag moves a session to the slot containing drop, keeping its duration.
func (c *Coordinator) Drag(ctx context.Context, id int64, drop time.Time, views ...Observer) (*Outcome, error) {
	return c.run(ctx, KindDrag, id, views, func(prior *scheduling.Session) (Snapshot, error) {
		start, end := DragTarget(prior, drop, c.loc)
		return Snapshot{Start: start, End: end, Status: prior.Status}, nil
	}, func(t Snapshot) (*scheduling.Session, error) {
		return c.store.Reschedule(ctx, id, t.Start, t.End)
	})
}

// Resize moves the end of a session, keeping its start.
func (c *Coordinator) Resize(ctx context.Context, id int64, newEnd time.Time, views ...Observer) (*Outcome, error) {
	return c.run(ctx, KindResize, id, views, func(prior *scheduling.Session) (Snapshot, error) {
		start, end, err := ResizeTarget(prior, newEnd, c.loc)
		return Snapshot{Start: start, End: end, Status: prior.Status}, err
	}, func(t Snapshot) (*scheduling.Session, error) {
		return c.store.Reschedule(ctx, id, t.Start, t.End)
	})
}

// ChangeStatus sets the status chosen on the quick-action surface. On success
// the outcome asks the client to close that surface.
func (c *Coordinator) ChangeStatus(ctx context.Context, id int64, status string, views ...Observer) (*Outcome, error) {
	return c.run(ctx, KindStatus, id, views, func(prior *scheduling.Session) (Snapshot, error) {
		st, err := scheduling.ParseStatus(status)
		return Snapshot{Start: prior.Start, End: prior.End, Status: st}, err
	}, func(t Snapshot) (*scheduling.Session, error) {
		return c.store.SetStatus(ctx, id, string(t.Status))
	})
}

// run drives one gesture. A gesture on a busy session is refused before
// anything is captured or dispatched, and the returned error is the only
// result. Every other failure settles the gesture as rolled back and the
// outcome carries the pre-gesture record.
func (c *Coordinator) run(ctx context.Context, kind Kind, id int64, views []Observer,
	target func(prior *scheduling.Session) (Snapshot, error),
	dispatch func(Snapshot) (*scheduling.Session, error)) (*Outcome, error) {

	release, err := c.guard.Acquire(ctx, scheduling.GuardKey(id))
	if err != nil {
		if errors.Is(err, apperr.ErrBusy) {
			c.metrics.ObserveGesture(string(kind), "busy")
			c.logger.Debug().Str("gesture", string(kind)).Int64("session_id", id).Msg("gesture refused, session busy")
		}
		return nil, err
	}
	defer release()

	prior, err := c.store.Get(ctx, id)
	if err != nil {
		c.metrics.ObserveGesture(string(kind), "not_dispatched")
		return nil, err
	}

	g := &Gesture{ID: uuid.NewString(), Kind: kind, SessionID: id, Phase: PhaseIdle, Prior: snapshotOf(prior)}
	if err := g.advance(PhasePending); err != nil {
		return nil, err
	}

	t, err := target(prior)
	if err == nil {
		g.Target = t
		for _, v := range views {
			v.Pending(g)
		}
		var stored *scheduling.Session
		if stored, err = dispatch(t); err == nil {
			return c.commit(g, stored, views), nil
		}
	}
	return c.rollback(g, prior, err, views), err
}

func (c *Coordinator) commit(g *Gesture, stored *scheduling.Session, views []Observer) *Outcome {
	_ = g.advance(PhaseCommitted)
	for _, v := range views {
		v.Settled(g, stored)
	}
	c.metrics.ObserveGesture(string(g.Kind), string(PhaseCommitted))
	c.logger.Info().
		Str("gesture_id", g.ID).
		Str("gesture", string(g.Kind)).
		Int64("session_id", g.SessionID).
		Msg("gesture committed")

	out := &Outcome{Gesture: g, Session: stored}
	switch g.Kind {
	case KindStatus:
		out.Message = "Session status updated"
		out.CloseQuickActions = true
	default:
		out.Message = "Session rescheduled"
	}
	return out
}

func (c *Coordinator) rollback(g *Gesture, prior *scheduling.Session, err error, views []Observer) *Outcome {
	_ = g.advance(PhaseRolledBack)
	for _, v := range views {
		v.Settled(g, prior)
	}
	c.metrics.ObserveGesture(string(g.Kind), string(PhaseRolledBack))

	evt := c.logger.Warn()
	if apperr.Status(err) >= 500 {
		evt = c.logger.Error()
	}
	evt.Err(err).
		Str("gesture_id", g.ID).
		Str("gesture", string(g.Kind)).
		Int64("session_id", g.SessionID).
		Msg("gesture rolled back")

	return &Outcome{Gesture: g, Session: prior, Message: apperr.Message(err), Err: err}
}
