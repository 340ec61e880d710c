package patient

import (
	"context"
	"time"
)

type Repository interface {
	List(ctx context.Context) ([]Patient, error)
	Get(ctx context.Context, id string) (*Patient, error)
	// Create assigns an id chosen from the stored ids and appends p.
	Create(ctx context.Context, p *Patient, assignID func(existing []string) (string, error)) error
	Upsert(ctx context.Context, p *Patient) error
	Modify(ctx context.Context, id string, fn func(*Patient) error) (*Patient, error)
	Delete(ctx context.Context, id string) error
}

// Dependents is implemented by the repositories of entities that reference
// a patient.
type Dependents interface {
	CountByPatient(ctx context.Context, patientID string) (int, error)
	DeleteByPatient(ctx context.Context, patientID string) (int, error)
}

// VisitSource lists the dates of a patient's medical records.
type VisitSource interface {
	VisitDates(ctx context.Context, patientID string) ([]string, error)
}

// Clock returns the current time.
type Clock func() time.Time
