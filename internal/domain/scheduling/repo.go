package scheduling

import (
	"context"
	"time"
)

// Repository stores sessions. Records it returns are copies owned by the
// caller.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id int64) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Session, error)
	// ListByRange returns sessions whose start lies in [start, end].
	ListByRange(ctx context.Context, start, end time.Time) ([]*Session, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*Session, error)
	// Reschedule replaces both times of a session in one atomic step.
	Reschedule(ctx context.Context, id int64, start, end time.Time) (*Session, error)
	SetStatus(ctx context.Context, id int64, status Status) (*Session, error)
	CountByPatient(ctx context.Context, patientID int64) (int, error)
}
