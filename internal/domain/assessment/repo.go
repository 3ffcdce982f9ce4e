package assessment

import (
	"context"
)

// Repository stores assessments with their progress notes. Notes are always
// returned newest first.
type Repository interface {
	Create(ctx context.Context, a *Assessment) error
	GetByID(ctx context.Context, id int64) (*Assessment, error)
	// Update replaces the date and clinical form. Notes are left untouched.
	Update(ctx context.Context, a *Assessment) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Assessment, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*Assessment, error)
	// AppendNote adds note and bumps updatedAt. It returns the stored
	// assessment.
	AppendNote(ctx context.Context, assessmentID int64, note *ProgressNote) (*Assessment, error)
	CountByPatient(ctx context.Context, patientID int64) (int, error)
}
