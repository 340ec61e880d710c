package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Documents is the explicit store handle shared by every repository. It is
// safe for concurrent use: read-modify-write cycles on one collection are
// serialized by Mutate.
type Documents struct {
	store    Store
	logger   zerolog.Logger
	observer Observer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Documents handle.
type Option func(*Documents)

// WithObserver routes operation timings and corrupt-read events to o.
func WithObserver(o Observer) Option {
	return func(d *Documents) {
		if o != nil {
			d.observer = o
		}
	}
}

func NewDocuments(store Store, logger zerolog.Logger, opts ...Option) *Documents {
	d := &Documents{
		store:    store,
		logger:   logger.With().Str("component", "docstore").Logger(),
		observer: nopObserver{},
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Ping checks that the backing store is reachable.
func (d *Documents) Ping(ctx context.Context) error { return d.store.Ping(ctx) }

func (d *Documents) lock(collection string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		d.locks[collection] = l
	}
	return l
}

// WithLock runs fn while holding the write locks of the given collections,
// acquired in the order given.
func (d *Documents) WithLock(fn func() error, collections ...string) error {
	for _, c := range collections {
		l := d.lock(c)
		l.Lock()
		defer l.Unlock()
	}
	return fn()
}

func (d *Documents) observe(op, collection string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	d.observer.ObserveOperation(op, collection, time.Since(start), err)
}

// Raw returns the stored bytes of a collection verbatim. ok is false when
// nothing is stored.
func (d *Documents) Raw(ctx context.Context, collection string) (data []byte, ok bool, err error) {
	start := time.Now()
	data, err = d.store.Get(ctx, collection)
	d.observe("read", collection, start, err)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		d.logger.Error().Err(err).Str("collection", collection).Msg("read collection failed")
		return nil, false, fmt.Errorf("read %s: %w", collection, err)
	}
	return data, true, nil
}

// putRaw stores data under collection. Callers hold the collection lock.
func (d *Documents) putRaw(ctx context.Context, collection string, data []byte) error {
	start := time.Now()
	err := d.store.Put(ctx, collection, data)
	d.observe("write", collection, start, err)
	if err != nil {
		d.logger.Error().Err(err).Str("collection", collection).Int("bytes", len(data)).Msg("write collection failed")
		return fmt.Errorf("write %s: %w", collection, err)
	}
	return nil
}

func (d *Documents) removeLocked(ctx context.Context, collection string) error {
	start := time.Now()
	err := d.store.Delete(ctx, collection)
	d.observe("delete", collection, start, err)
	if err != nil {
		d.logger.Error().Err(err).Str("collection", collection).Msg("delete collection failed")
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	return nil
}

// Read decodes a collection. An absent document yields def. A document that
// cannot be decoded also yields def: the problem is logged and reported to
// the observer but not returned. Only backend failures produce an error.
func Read[T any](ctx context.Context, d *Documents, collection string, def T) (T, error) {
	data, ok, err := d.Raw(ctx, collection)
	if err != nil || !ok {
		return def, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return def, nil
	}

	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		d.logger.Warn().
			Err(err).
			Str("collection", collection).
			Int("bytes", len(data)).
			Msg("stored collection is malformed, falling back to default")
		d.observer.ObserveCorruptRead(collection)
		return def, nil
	}
	return v, nil
}

// Write encodes v and replaces the collection with it. Encoding and backend
// failures are logged and returned.
func Write[T any](ctx context.Context, d *Documents, collection string, v T) error {
	l := d.lock(collection)
	l.Lock()
	defer l.Unlock()
	return writeLocked(ctx, d, collection, v)
}

func writeLocked[T any](ctx context.Context, d *Documents, collection string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		d.logger.Error().Err(err).Str("collection", collection).Msg("encode collection failed")
		return fmt.Errorf("encode %s: %w", collection, err)
	}
	return d.putRaw(ctx, collection, data)
}

// Mutate reads a collection, applies fn and writes the result back while
// holding the collection lock. If fn returns an error nothing is written.
func Mutate[T any](ctx context.Context, d *Documents, collection string, def T, fn func(T) (T, error)) error {
	l := d.lock(collection)
	l.Lock()
	defer l.Unlock()

	cur, err := Read(ctx, d, collection, def)
	if err != nil {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	return writeLocked(ctx, d, collection, next)
}

// ReplaceRaw writes several collections verbatim. All locks are taken
// before the first write; writes happen in the order of the keys slice.
// A context that is done before the first write aborts the call; once
// writing has started, cancellation no longer stops it, so a caller's
// deadline cannot leave only some collections replaced. Backend failures
// still can: there is no rollback across collections.
func (d *Documents) ReplaceRaw(ctx context.Context, keys []string, docs map[string][]byte) error {
	return d.WithLock(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ctx := context.WithoutCancel(ctx)
		for _, k := range keys {
			data, ok := docs[k]
			if !ok {
				continue
			}
			if err := d.putRaw(ctx, k, data); err != nil {
				return err
			}
		}
		return nil
	}, keys...)
}

// RemoveAll deletes every listed collection. Like ReplaceRaw it runs to
// completion once the first delete has been issued.
func (d *Documents) RemoveAll(ctx context.Context, collections ...string) error {
	return d.WithLock(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ctx := context.WithoutCancel(ctx)
		for _, c := range collections {
			if err := d.removeLocked(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}, collections...)
}
