package assessment

import (
	"context"
	"time"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

// PatientLookup runs fn only while patient id exists, and keeps the patient
// from being deleted until fn returns.
type PatientLookup interface {
	WhileExists(ctx context.Context, id int64, fn func(ctx context.Context) error) error
}

type Service struct {
	repo     Repository
	patients PatientLookup
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, patients PatientLookup, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, patients: patients, loc: loc, now: time.Now}
}

func (s *Service) Create(ctx context.Context, a *Assessment) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Date == "" {
		a.Date = localtime.FormatDate(s.now(), s.loc)
	}
	if s.patients == nil {
		return s.repo.Create(ctx, a)
	}
	return s.patients.WhileExists(ctx, a.PatientID, func(ctx context.Context) error {
		return s.repo.Create(ctx, a)
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Assessment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Assessment, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Assessment, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// Update replaces the date and clinical form. Progress notes and the owning
// patient are never changed here.
func (s *Service) Update(ctx context.Context, a *Assessment) error {
	if a.ID <= 0 {
		return apperr.Validation("id is required")
	}
	existing, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if a.PatientID == 0 {
		a.PatientID = existing.PatientID
	}
	if a.PatientID != existing.PatientID {
		return apperr.Validation("clienteId of an assessment cannot change")
	}
	if a.Date == "" {
		a.Date = existing.Date
	}
	if err := a.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, a)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// AppendProgressNote adds a note to the evolution log. A zero timestamp
// means now.
func (s *Service) AppendProgressNote(ctx context.Context, assessmentID int64, text string, at time.Time) (*Assessment, error) {
	note := &ProgressNote{Text: text, Timestamp: at}
	if err := note.Validate(); err != nil {
		return nil, err
	}
	return s.repo.AppendNote(ctx, assessmentID, note)
}

func (s *Service) CountByPatient(ctx context.Context, patientID int64) (int, error) {
	return s.repo.CountByPatient(ctx, patientID)
}
