package patient

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
)

type memoryRepo struct {
	mu       sync.RWMutex
	patients map[int64]*Patient
	nextID   int64
	now      func() time.Time
}

// NewMemoryRepo returns a process-local Repository. Records handed out are
// copies; callers never share state with the store.
func NewMemoryRepo() Repository {
	return &memoryRepo{patients: make(map[int64]*Patient), nextID: 1, now: time.Now}
}

func (r *memoryRepo) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.ID = r.nextID
	r.nextID++
	now := r.now().UTC()
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = now
	}
	p.UpdatedAt = now
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient %d not found", id)
	}
	cp := *p
	return &cp, nil
}

func (r *memoryRepo) Update(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.patients[p.ID]
	if !ok {
		return apperr.NotFound("patient %d not found", p.ID)
	}
	p.RegisteredAt = existing.RegisteredAt
	p.UpdatedAt = r.now().UTC()
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[id]; !ok {
		return apperr.NotFound("patient %d not found", id)
	}
	delete(r.patients, id)
	return nil
}

func (r *memoryRepo) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return r.SearchByName(ctx, "", limit, offset)
}

func (r *memoryRepo) SearchByName(_ context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(name))
	var matched []*Patient
	for _, p := range r.patients {
		if needle == "" || strings.Contains(strings.ToLower(p.Name), needle) {
			cp := *p
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := strings.ToLower(matched[i].Name), strings.ToLower(matched[j].Name)
		if a != b {
			return a < b
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

func (r *memoryRepo) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patients), nil
}
