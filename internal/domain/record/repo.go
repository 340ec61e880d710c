package record

import (
	"context"
	"errors"
	"time"

	"github.com/medvault/medvault/internal/platform/docstore"
)

type Repository interface {
	// List returns records in stored order; an empty patientID lists all.
	List(ctx context.Context, patientID string) ([]MedicalRecord, error)
	Get(ctx context.Context, id string) (*MedicalRecord, error)
	Upsert(ctx context.Context, r *MedicalRecord) error
	Modify(ctx context.Context, id string, fn func(*MedicalRecord) error) (*MedicalRecord, error)
	Delete(ctx context.Context, id string) error
	CountByPatient(ctx context.Context, patientID string) (int, error)
	DeleteByPatient(ctx context.Context, patientID string) (int, error)
	VisitDates(ctx context.Context, patientID string) ([]string, error)
}

var accessors = docstore.Accessors[MedicalRecord]{
	ID:        func(r *MedicalRecord) string { return r.ID },
	CreatedAt: func(r *MedicalRecord) string { return r.CreatedAt },
	Stamp: func(r *MedicalRecord, createdAt, updatedAt string) {
		r.CreatedAt = createdAt
		r.UpdatedAt = updatedAt
	},
}

type docRepo struct {
	coll *docstore.Collection[MedicalRecord]
}

// NewDocRepo returns a Repository over the medical_records collection.
func NewDocRepo(docs *docstore.Documents, now func() time.Time) Repository {
	return &docRepo{coll: docstore.NewCollection(docs, docstore.MedicalRecords, accessors, now)}
}

func forPatient(patientID string) func(*MedicalRecord) bool {
	return func(r *MedicalRecord) bool { return r.PatientID == patientID }
}

func (r *docRepo) List(ctx context.Context, patientID string) ([]MedicalRecord, error) {
	if patientID == "" {
		return r.coll.All(ctx)
	}
	return r.coll.Filter(ctx, forPatient(patientID))
}

func (r *docRepo) Get(ctx context.Context, id string) (*MedicalRecord, error) {
	rec, err := r.coll.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (r *docRepo) Upsert(ctx context.Context, rec *MedicalRecord) error {
	return r.coll.Upsert(ctx, rec)
}

func (r *docRepo) Modify(ctx context.Context, id string, fn func(*MedicalRecord) error) (*MedicalRecord, error) {
	rec, err := r.coll.Modify(ctx, id, fn)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return rec, err
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

func (r *docRepo) VisitDates(ctx context.Context, patientID string) ([]string, error) {
	recs, err := r.List(ctx, patientID)
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(recs))
	for _, rec := range recs {
		dates = append(dates, rec.Date)
	}
	return dates, nil
}
