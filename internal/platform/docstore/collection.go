package docstore

import (
	"context"
	"time"
)

// TimeFormat is the timestamp layout of createdAt and updatedAt. It matches
// JavaScript's Date.toISOString so documents written by either side stay
// interchangeable.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in UTC using TimeFormat.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// Accessors tell a Collection how to reach the identity and timestamps of
// an element.
type Accessors[T any] struct {
	ID        func(*T) string
	CreatedAt func(*T) string
	Stamp     func(v *T, createdAt, updatedAt string)
}

// Collection is an array-shaped document of entities keyed by id. Every
// mutation is a read-modify-write under the collection lock.
type Collection[T any] struct {
	docs *Documents
	name string
	acc  Accessors[T]
	now  func() time.Time
}

func NewCollection[T any](docs *Documents, name string, acc Accessors[T], now func() time.Time) *Collection[T] {
	if now == nil {
		now = time.Now
	}
	return &Collection[T]{docs: docs, name: name, acc: acc, now: now}
}

// All returns every element in stored order.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	return Read(ctx, c.docs, c.name, []T{})
}

// Filter returns the elements for which match is true, in stored order.
func (c *Collection[T]) Filter(ctx context.Context, match func(*T) bool) ([]T, error) {
	items, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for i := range items {
		if match(&items[i]) {
			out = append(out, items[i])
		}
	}
	return out, nil
}

// Get returns the element with the given id or ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	items, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if c.acc.ID(&items[i]) == id {
			v := items[i]
			return &v, nil
		}
	}
	return nil, ErrNotFound
}

// Upsert replaces the element with v's id, keeping its stored createdAt and
// refreshing updatedAt, or appends v with both timestamps set to now. v is
// stamped in place.
func (c *Collection[T]) Upsert(ctx context.Context, v *T) error {
	return Mutate(ctx, c.docs, c.name, []T{}, func(items []T) ([]T, error) {
		return c.upsertLocked(items, v), nil
	})
}

func (c *Collection[T]) upsertLocked(items []T, v *T) []T {
	ts := FormatTime(c.now())
	id := c.acc.ID(v)
	for i := range items {
		if c.acc.ID(&items[i]) == id {
			c.acc.Stamp(v, c.acc.CreatedAt(&items[i]), ts)
			items[i] = *v
			return items
		}
	}
	c.acc.Stamp(v, ts, ts)
	return append(items, *v)
}

// Insert builds a new element from the current contents and appends it, all
// under the collection lock. build sees the stored elements and must return
// an element whose id is not among them.
func (c *Collection[T]) Insert(ctx context.Context, build func(existing []T) (T, error)) (*T, error) {
	var created T
	err := Mutate(ctx, c.docs, c.name, []T{}, func(items []T) ([]T, error) {
		v, err := build(items)
		if err != nil {
			return nil, err
		}
		items = c.upsertLocked(items, &v)
		created = v
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Modify applies fn to the stored element with the given id and persists the
// result with a fresh updatedAt. It returns ErrNotFound when the id is
// absent, and writes nothing when fn fails.
func (c *Collection[T]) Modify(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	var updated T
	err := Mutate(ctx, c.docs, c.name, []T{}, func(items []T) ([]T, error) {
		for i := range items {
			if c.acc.ID(&items[i]) != id {
				continue
			}
			v := items[i]
			if err := fn(&v); err != nil {
				return nil, err
			}
			c.acc.Stamp(&v, c.acc.CreatedAt(&items[i]), FormatTime(c.now()))
			items[i] = v
			updated = v
			return items, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the element with the given id. Deleting an absent id is a
// no-op and rewrites nothing.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	_, err := c.DeleteWhere(ctx, func(v *T) bool { return c.acc.ID(v) == id })
	return err
}

// DeleteWhere removes every element for which match is true and reports how
// many were removed.
func (c *Collection[T]) DeleteWhere(ctx context.Context, match func(*T) bool) (int, error) {
	removed := 0
	err := Mutate(ctx, c.docs, c.name, []T{}, func(items []T) ([]T, error) {
		out := make([]T, 0, len(items))
		for i := range items {
			if match(&items[i]) {
				removed++
				continue
			}
			out = append(out, items[i])
		}
		if removed == 0 {
			return nil, errUnchanged
		}
		return out, nil
	})
	if err == errUnchanged {
		return 0, nil
	}
	return removed, err
}

// Count reports how many elements match.
func (c *Collection[T]) Count(ctx context.Context, match func(*T) bool) (int, error) {
	items, err := c.Filter(ctx, match)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// ParseTime reads a stored timestamp or calendar date. It accepts RFC 3339
// (with or without fractional seconds), datetime-local values without a
// zone and plain YYYY-MM-DD dates. Zoneless values are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
