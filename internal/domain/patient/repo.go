package patient

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	SearchByName(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error)
	Count(ctx context.Context) (int, error)
}

// Dependents counts records that belong to a patient. Sessions and
// assessments implement it so a patient who still owns data cannot be deleted.
type Dependents interface {
	CountByPatient(ctx context.Context, patientID int64) (int, error)
}
