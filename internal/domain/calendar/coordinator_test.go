package calendar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulsalutte/clinic/internal/domain/scheduling"
	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/internal/platform/inflight"
	"github.com/soulsalutte/clinic/internal/platform/metrics"
)

type patientsStub struct{}

func (patientsStub) WhileExists(ctx context.Context, _ int64, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// flakyStore fails mutations with failErr and can hold them until release
// is closed.
type flakyStore struct {
	*scheduling.Service
	failErr error
	entered chan struct{}
	release chan struct{}
}

func (s *flakyStore) wait() {
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
}

func (s *flakyStore) Reschedule(ctx context.Context, id int64, start, end time.Time) (*scheduling.Session, error) {
	s.wait()
	if s.failErr != nil {
		return nil, s.failErr
	}
	return s.Service.Reschedule(ctx, id, start, end)
}

func (s *flakyStore) SetStatus(ctx context.Context, id int64, status string) (*scheduling.Session, error) {
	s.wait()
	if s.failErr != nil {
		return nil, s.failErr
	}
	return s.Service.SetStatus(ctx, id, status)
}

type fixture struct {
	store   *flakyStore
	coord   *Coordinator
	guard   *inflight.MemoryGuard
	reg     *prometheus.Registry
	session *scheduling.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc := scheduling.NewService(scheduling.NewMemoryRepo(), patientsStub{})
	s := &scheduling.Session{PatientID: 1, Label: "Maria Silva", Start: local(3, 8, 0).UTC(), End: local(3, 9, 0).UTC()}
	require.NoError(t, svc.Create(context.Background(), s))

	store := &flakyStore{Service: svc}
	guard := inflight.NewMemoryGuard()
	reg := prometheus.NewRegistry()
	return &fixture{
		store:   store,
		coord:   NewCoordinator(store, guard, metrics.New(reg), zerolog.Nop(), brt),
		guard:   guard,
		reg:     reg,
		session: s,
	}
}

// gestures reads clinic_calendar_gestures_total{kind,outcome}.
func (f *fixture) gestures(kind Kind, outcome string) float64 {
	families, err := f.reg.Gather()
	if err != nil {
		return -1
	}
	for _, mf := range families {
		if mf.GetName() != "clinic_calendar_gestures_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["kind"] == string(kind) && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestCoordinator_DragCommits(t *testing.T) {
	f := newFixture(t)
	out, err := f.coord.Drag(context.Background(), f.session.ID, local(3, 10, 0))
	require.NoError(t, err)

	assert.Equal(t, PhaseCommitted, out.Gesture.Phase)
	assert.True(t, out.Session.Start.Equal(local(3, 10, 0)))
	assert.True(t, out.Session.End.Equal(local(3, 11, 0)))
	assert.True(t, out.Gesture.Prior.Start.Equal(local(3, 8, 0)))
	assert.False(t, out.CloseQuickActions)
	assert.Equal(t, 1.0, f.gestures(KindDrag, "committed"))
	assert.False(t, f.coord.Busy(context.Background(), f.session.ID))
}

func TestCoordinator_ResizeCommits(t *testing.T) {
	f := newFixture(t)
	out, err := f.coord.Resize(context.Background(), f.session.ID, local(3, 9, 30))
	require.NoError(t, err)
	assert.True(t, out.Session.Start.Equal(f.session.Start))
	assert.True(t, out.Session.End.Equal(local(3, 9, 30)))
}

func TestCoordinator_InvalidResizeLeavesRecord(t *testing.T) {
	f := newFixture(t)
	out, err := f.coord.Resize(context.Background(), f.session.ID, local(3, 7, 30))
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, PhaseRolledBack, out.Gesture.Phase)
	assert.True(t, out.Session.End.Equal(local(3, 9, 0)))

	stored, _ := f.store.Get(context.Background(), f.session.ID)
	assert.True(t, stored.End.Equal(local(3, 9, 0)))
	assert.Equal(t, 1.0, f.gestures(KindResize, "rolled_back"))
}

func TestCoordinator_StatusClosesQuickActions(t *testing.T) {
	f := newFixture(t)
	out, err := f.coord.ChangeStatus(context.Background(), f.session.ID, "NO_SHOW")
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusNoShow, out.Session.Status)
	assert.True(t, out.CloseQuickActions)
}

func TestCoordinator_TransportFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.store.failErr = apperr.Transport(errors.New("dial tcp 10.0.0.5:5432: connection refused"), "reschedule")

	out, err := f.coord.Drag(context.Background(), f.session.ID, local(3, 14, 0))
	require.ErrorIs(t, err, apperr.ErrTransport)
	assert.Equal(t, PhaseRolledBack, out.Gesture.Phase)
	assert.True(t, out.Session.Start.Equal(local(3, 8, 0)))
	assert.True(t, out.Session.End.Equal(local(3, 9, 0)))
	assert.Equal(t, scheduling.StatusScheduled, out.Session.Status)
	assert.Equal(t, apperr.GenericMessage, out.Message)
	assert.NotContains(t, out.Message, "connection refused")
}

func TestCoordinator_UnknownSession(t *testing.T) {
	f := newFixture(t)
	out, err := f.coord.Drag(context.Background(), 404, local(3, 14, 0))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Nil(t, out)
}

func TestCoordinator_SecondGestureOnBusySessionIsRefused(t *testing.T) {
	f := newFixture(t)
	f.store.entered = make(chan struct{})
	f.store.release = make(chan struct{})

	var wg sync.WaitGroup
	var first *Outcome
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = f.coord.Drag(context.Background(), f.session.ID, local(3, 10, 0))
	}()
	<-f.store.entered

	assert.True(t, f.coord.Busy(context.Background(), f.session.ID))
	_, err := f.coord.Drag(context.Background(), f.session.ID, local(3, 15, 0))
	assert.ErrorIs(t, err, apperr.ErrBusy)
	_, err = f.coord.ChangeStatus(context.Background(), f.session.ID, "COMPLETED")
	assert.ErrorIs(t, err, apperr.ErrBusy)

	close(f.store.release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.True(t, first.Session.Start.Equal(local(3, 10, 0)))
	assert.Equal(t, 2.0, f.gestures(KindDrag, "busy")+f.gestures(KindStatus, "busy"))

	stored, _ := f.store.Get(context.Background(), f.session.ID)
	assert.Equal(t, scheduling.StatusScheduled, stored.Status)
}

func TestCoordinator_DistinctSessionsIndependent(t *testing.T) {
	f := newFixture(t)
	other := &scheduling.Session{PatientID: 1, Start: local(3, 10, 0).UTC(), End: local(3, 11, 0).UTC()}
	require.NoError(t, f.store.Create(context.Background(), other))

	release, err := f.guard.Acquire(context.Background(), scheduling.GuardKey(f.session.ID))
	require.NoError(t, err)
	defer release()

	_, err = f.coord.Drag(context.Background(), other.ID, local(3, 12, 0))
	assert.NoError(t, err)
}

func TestBoard_OptimisticRollback(t *testing.T) {
	f := newFixture(t)
	f.store.entered = make(chan struct{})
	f.store.release = make(chan struct{})
	f.store.failErr = apperr.Transport(errors.New("timeout"), "reschedule")
	board := NewBoard(Optimistic, []*scheduling.Session{f.session})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.coord.Drag(context.Background(), f.session.ID, local(3, 13, 0), board)
	}()
	<-f.store.entered

	pending, _ := board.Session(f.session.ID)
	assert.True(t, pending.Start.Equal(local(3, 13, 0)), "optimistic board shows the target while pending")
	assert.True(t, board.Busy(f.session.ID))

	close(f.store.release)
	<-done
	restored, _ := board.Session(f.session.ID)
	assert.True(t, restored.Start.Equal(local(3, 8, 0)))
	assert.True(t, restored.End.Equal(local(3, 9, 0)))
	assert.False(t, board.Busy(f.session.ID))
}

func TestBoard_ConfirmedWaitsForStore(t *testing.T) {
	f := newFixture(t)
	f.store.entered = make(chan struct{})
	f.store.release = make(chan struct{})
	board := NewBoard(Confirmed, []*scheduling.Session{f.session})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.coord.Drag(context.Background(), f.session.ID, local(3, 13, 0), board)
	}()
	<-f.store.entered

	pending, _ := board.Session(f.session.ID)
	assert.True(t, pending.Start.Equal(local(3, 8, 0)))

	close(f.store.release)
	<-done
	committed, _ := board.Session(f.session.ID)
	assert.True(t, committed.Start.Equal(local(3, 13, 0)))

	g := board.Grid(NewWindow(local(3, 0, 0), ViewDay, brt), nil, brt)
	require.Len(t, g.Days[0].Events, 1)
	assert.Equal(t, "2024-06-03T13:00:00", g.Days[0].Events[0].Start)
}
