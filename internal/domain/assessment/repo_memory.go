package assessment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
)

type memoryRepo struct {
	mu          sync.RWMutex
	assessments map[int64]*Assessment
	nextID      int64
	nextNoteID  int64
	now         func() time.Time
}

func NewMemoryRepo() Repository {
	return &memoryRepo{assessments: make(map[int64]*Assessment), nextID: 1, nextNoteID: 1, now: time.Now}
}

func (r *memoryRepo) out(a *Assessment) *Assessment {
	cp := a.Clone()
	SortNotes(cp.Notes)
	return cp
}

func (r *memoryRepo) Create(_ context.Context, a *Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a.ID = r.nextID
	r.nextID++
	now := r.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	a.Notes = []ProgressNote{}
	r.assessments[a.ID] = a.Clone()
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id int64) (*Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assessments[id]
	if !ok {
		return nil, apperr.NotFound("assessment %d not found", id)
	}
	return r.out(a), nil
}

func (r *memoryRepo) Update(_ context.Context, a *Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.assessments[a.ID]
	if !ok {
		return apperr.NotFound("assessment %d not found", a.ID)
	}
	existing.Date = a.Date
	existing.Form = a.Form
	existing.UpdatedAt = r.now().UTC()
	*a = *r.out(existing)
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.assessments[id]; !ok {
		return apperr.NotFound("assessment %d not found", id)
	}
	delete(r.assessments, id)
	return nil
}

func (r *memoryRepo) filter(keep func(*Assessment) bool) []*Assessment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Assessment, 0)
	for _, a := range r.assessments {
		if keep(a) {
			items = append(items, r.out(a))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date > items[j].Date
		}
		return items[i].ID > items[j].ID
	})
	return items
}

func (r *memoryRepo) List(_ context.Context) ([]*Assessment, error) {
	return r.filter(func(*Assessment) bool { return true }), nil
}

func (r *memoryRepo) ListByPatient(_ context.Context, patientID int64) ([]*Assessment, error) {
	return r.filter(func(a *Assessment) bool { return a.PatientID == patientID }), nil
}

func (r *memoryRepo) AppendNote(_ context.Context, assessmentID int64, note *ProgressNote) (*Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assessments[assessmentID]
	if !ok {
		return nil, apperr.NotFound("assessment %d not found", assessmentID)
	}
	now := r.now().UTC()
	note.ID = r.nextNoteID
	r.nextNoteID++
	if note.Timestamp.IsZero() {
		note.Timestamp = now
	}
	note.Timestamp = note.Timestamp.UTC()
	a.Notes = append(a.Notes, *note)
	a.UpdatedAt = touchTime(now, *note, a.CreatedAt)
	return r.out(a), nil
}

func (r *memoryRepo) CountByPatient(_ context.Context, patientID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, a := range r.assessments {
		if a.PatientID == patientID {
			n++
		}
	}
	return n, nil
}
