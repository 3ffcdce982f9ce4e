package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
)

type memoryRepo struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	nextID   int64
	now      func() time.Time
}

func NewMemoryRepo() Repository {
	return &memoryRepo{sessions: make(map[int64]*Session), nextID: 1, now: time.Now}
}

func sortByStart(items []*Session) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Start.Equal(items[j].Start) {
			return items[i].Start.Before(items[j].Start)
		}
		return items[i].ID < items[j].ID
	})
}

func (r *memoryRepo) Create(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.ID = r.nextID
	r.nextID++
	now := r.now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id int64) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session %d not found", id)
	}
	return s.Clone(), nil
}

func (r *memoryRepo) Update(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[s.ID]
	if !ok {
		return apperr.NotFound("session %d not found", s.ID)
	}
	s.PatientID = existing.PatientID
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = r.now().UTC()
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return apperr.NotFound("session %d not found", id)
	}
	delete(r.sessions, id)
	return nil
}

func (r *memoryRepo) filter(keep func(*Session) bool) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0)
	for _, s := range r.sessions {
		if keep(s) {
			out = append(out, s.Clone())
		}
	}
	sortByStart(out)
	return out
}

func (r *memoryRepo) List(_ context.Context) ([]*Session, error) {
	return r.filter(func(*Session) bool { return true }), nil
}

func (r *memoryRepo) ListByRange(_ context.Context, start, end time.Time) ([]*Session, error) {
	return r.filter(func(s *Session) bool {
		return !s.Start.Before(start) && !s.Start.After(end)
	}), nil
}

func (r *memoryRepo) ListByPatient(_ context.Context, patientID int64) ([]*Session, error) {
	return r.filter(func(s *Session) bool { return s.PatientID == patientID }), nil
}

func (r *memoryRepo) Reschedule(_ context.Context, id int64, start, end time.Time) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session %d not found", id)
	}
	s.Start, s.End = start.UTC(), end.UTC()
	s.UpdatedAt = r.now().UTC()
	return s.Clone(), nil
}

func (r *memoryRepo) SetStatus(_ context.Context, id int64, status Status) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, apperr.NotFound("session %d not found", id)
	}
	s.Status = status
	s.UpdatedAt = r.now().UTC()
	return s.Clone(), nil
}

func (r *memoryRepo) CountByPatient(_ context.Context, patientID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.sessions {
		if s.PatientID == patientID {
			n++
		}
	}
	return n, nil
}
