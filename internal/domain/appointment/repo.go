package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/medvault/medvault/internal/platform/docstore"
)

type Repository interface {
	// List returns appointments in stored order; an empty patientID lists all.
	List(ctx context.Context, patientID string) ([]Appointment, error)
	Get(ctx context.Context, id string) (*Appointment, error)
	Upsert(ctx context.Context, a *Appointment) error
	Modify(ctx context.Context, id string, fn func(*Appointment) error) (*Appointment, error)
	Delete(ctx context.Context, id string) error
	CountByPatient(ctx context.Context, patientID string) (int, error)
	DeleteByPatient(ctx context.Context, patientID string) (int, error)
}

var accessors = docstore.Accessors[Appointment]{
	ID:        func(a *Appointment) string { return a.ID },
	CreatedAt: func(a *Appointment) string { return a.CreatedAt },
	Stamp: func(a *Appointment, createdAt, updatedAt string) {
		a.CreatedAt = createdAt
		a.UpdatedAt = updatedAt
	},
}

type docRepo struct {
	coll *docstore.Collection[Appointment]
}

// NewDocRepo returns a Repository over the appointments collection.
func NewDocRepo(docs *docstore.Documents, now func() time.Time) Repository {
	return &docRepo{coll: docstore.NewCollection(docs, docstore.Appointments, accessors, now)}
}

func forPatient(patientID string) func(*Appointment) bool {
	return func(a *Appointment) bool { return a.PatientID == patientID }
}

func (r *docRepo) List(ctx context.Context, patientID string) ([]Appointment, error) {
	if patientID == "" {
		return r.coll.All(ctx)
	}
	return r.coll.Filter(ctx, forPatient(patientID))
}

func (r *docRepo) Get(ctx context.Context, id string) (*Appointment, error) {
	a, err := r.coll.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *docRepo) Upsert(ctx context.Context, a *Appointment) error {
	return r.coll.Upsert(ctx, a)
}

func (r *docRepo) Modify(ctx context.Context, id string, fn func(*Appointment) error) (*Appointment, error) {
	a, err := r.coll.Modify(ctx, id, fn)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *docRepo) Delete(ctx context.Context, id string) error {
	return r.coll.Delete(ctx, id)
}

func (r *docRepo) CountByPatient(ctx context.Context, patientID string) (int, error) {
	return r.coll.Count(ctx, forPatient(patientID))
}

func (r *docRepo) DeleteByPatient(ctx context.Context, patientID string) (int, error) {
	return r.coll.DeleteWhere(ctx, forPatient(patientID))
}
