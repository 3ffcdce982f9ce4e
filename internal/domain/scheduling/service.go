package scheduling

import (
	"context"
	"time"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
)

// PatientLookup runs fn only while patient id exists, and keeps the patient
// from being deleted until fn returns.
type PatientLookup interface {
	WhileExists(ctx context.Context, id int64, fn func(ctx context.Context) error) error
}

type Service struct {
	repo     Repository
	patients PatientLookup
}

func NewService(repo Repository, patients PatientLookup) *Service {
	return &Service{repo: repo, patients: patients}
}

func (s *Service) withPatient(ctx context.Context, id int64, fn func(ctx context.Context) error) error {
	if s.patients == nil {
		return fn(ctx)
	}
	return s.patients.WhileExists(ctx, id, fn)
}

// ListByDateRange returns sessions starting within [start, end], earliest
// first. A reversed range is reported as not found.
func (s *Service) ListByDateRange(ctx context.Context, start, end time.Time) ([]*Session, error) {
	if start.After(end) {
		return nil, apperr.NotFound("no sessions: range start %s is after end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return s.repo.ListByRange(ctx, start, end)
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Session, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) List(ctx context.Context) ([]*Session, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*Session, error) {
	return s.repo.GetByID(ctx, id)
}

// Create books a new session. Every session starts out SCHEDULED.
func (s *Service) Create(ctx context.Context, sess *Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	sess.Status = StatusScheduled
	return s.withPatient(ctx, sess.PatientID, func(ctx context.Context) error {
		return s.repo.Create(ctx, sess)
	})
}

// Update replaces the editable fields of a session. The owning patient is
// fixed at creation and a different clienteId is rejected.
func (s *Service) Update(ctx context.Context, sess *Session) error {
	if sess.ID <= 0 {
		return apperr.Validation("id is required")
	}
	existing, err := s.repo.GetByID(ctx, sess.ID)
	if err != nil {
		return err
	}
	if sess.PatientID == 0 {
		sess.PatientID = existing.PatientID
	}
	if sess.PatientID != existing.PatientID {
		return apperr.Validation("clienteId of a session cannot change")
	}
	if sess.Status == "" {
		sess.Status = existing.Status
	}
	if err := sess.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, sess)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Reschedule moves a session to [start, end) in one step.
func (s *Service) Reschedule(ctx context.Context, id int64, start, end time.Time) (*Session, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	return s.repo.Reschedule(ctx, id, start, end)
}

// SetStatus accepts any of the four statuses from any current status.
func (s *Service) SetStatus(ctx context.Context, id int64, status string) (*Session, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.repo.SetStatus(ctx, id, st)
}

func (s *Service) CountByPatient(ctx context.Context, patientID int64) (int, error) {
	return s.repo.CountByPatient(ctx, patientID)
}
