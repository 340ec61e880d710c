package patient

import (
	"context"
	"errors"

	"github.com/medvault/medvault/internal/platform/docstore"
)

var accessors = docstore.Accessors[Patient]{
	ID:        func(p *Patient) string { return p.ID },
	CreatedAt: func(p *Patient) string { return p.CreatedAt },
	Stamp: func(p *Patient, createdAt, updatedAt string) {
		p.CreatedAt = createdAt
		p.UpdatedAt = updatedAt
	},
}

type docRepo struct {
	coll *docstore.Collection[Patient]
}

// NewDocRepo returns a Repository over the patients collection.
func NewDocRepo(docs *docstore.Documents, now Clock) Repository {
	return &docRepo{coll: docstore.NewCollection(docs, docstore.Patients, accessors, now)}
}

func (r *docRepo) List(ctx context.Context) ([]Patient, error) {
	return r.coll.All(ctx)
}

func (r *docRepo) Get(ctx context.Context, id string) (*Patient, error) {
	p, err := r.coll.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *docRepo) Create(ctx context.Context, p *Patient, assignID func(existing []string) (string, error)) error {
	created, err := r.coll.Insert(ctx, func(existing []Patient) (Patient, error) {
		ids := make([]string, len(existing))
		for i := range existing {
			ids[i] = existing[i].ID
		}
		id, err := assignID(ids)
		if err != nil {
			return Patient{}, err
		}
		v := *p
		v.ID = id
		return v, nil
	})
	if err != nil {
		return err
	}
	*p = *created
	return nil
}

func (r *docRepo) Upsert(ctx context.Context, p *Patient) error {
	return r.coll.Upsert(ctx, p)
}

func (r *docRepo) Modify(ctx context.Context, id string, fn func(*Patient) error) (*Patient, error) {
	p, err := r.coll.Modify(ctx, id, fn)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *docRepo) Delete(ctx context.Context, id string) error {
	return r.coll.Delete(ctx, id)
}
