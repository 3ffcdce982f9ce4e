package patient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
)

type Service struct {
	repo       Repository
	dependents []Dependents

	// mu orders deletes against inserts of dependent records: WhileExists
	// holds it shared, Delete exclusively.
	mu sync.RWMutex
}

func NewService(repo Repository, dependents ...Dependents) *Service {
	return &Service{repo: repo, dependents: dependents}
}

// AddDependents registers further owners of patient data checked on delete.
func (s *Service) AddDependents(d ...Dependents) {
	s.dependents = append(s.dependents, d...)
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := p.Normalize(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	// Registration date is always assigned by the store.
	p.RegisteredAt = time.Time{}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// Exists reports whether a patient with id is stored.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// WhileExists runs fn if patient id exists. The patient cannot be deleted
// until fn returns, so a record fn stores for it is seen by Delete.
func (s *Service) WhileExists(ctx context.Context, id int64, fn func(ctx context.Context) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ok, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("patient %d not found", id)
	}
	return fn(ctx)
}

// Update replaces every editable field. Id and registration date are kept.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.ID <= 0 {
		return apperr.Validation("id is required")
	}
	if err := p.Normalize(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

// Delete removes a patient who owns no sessions or assessments.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	for _, d := range s.dependents {
		n, err := d.CountByPatient(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("patient %d still has sessions or assessments", id)
		}
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Search matches a case-insensitive substring of the patient's name.
func (s *Service) Search(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.repo.List(ctx, limit, offset)
	}
	return s.repo.SearchByName(ctx, name, limit, offset)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
