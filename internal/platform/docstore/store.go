// Package docstore persists named JSON collections in a key-value substrate.
// A Store only moves bytes; Documents adds JSON encoding, fallback on
// corrupt data, per-collection locking and diagnostics on top of it.
package docstore

import (
	"context"
	"errors"
	"time"
)

// Collection names. Each one is a single JSON array document.
const (
	Patients       = "patients"
	MedicalRecords = "medical_records"
	Appointments   = "appointments"
)

// Collections lists every collection the application owns.
var Collections = []string{Patients, MedicalRecords, Appointments}

// ErrNotFound is returned by Store.Get when no document is stored under a key.
var ErrNotFound = errors.New("document not found")

// errUnchanged aborts a Mutate without writing.
var errUnchanged = errors.New("collection unchanged")

// Store is a byte-transparent blob store. Put must replace the value stored
// under key atomically; Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Observer receives store diagnostics. telemetry.Provider implements it.
type Observer interface {
	ObserveOperation(op, collection string, d time.Duration, err error)
	ObserveCorruptRead(collection string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, time.Duration, error) {}
func (nopObserver) ObserveCorruptRead(string)                             {}

// prefixed namespaces every key of the wrapped store.
type prefixed struct {
	Store
	prefix string
}

// WithPrefix returns a Store that stores key under prefix+key. An empty
// prefix returns s unchanged.
func WithPrefix(s Store, prefix string) Store {
	if prefix == "" {
		return s
	}
	return &prefixed{Store: s, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.Store.Get(ctx, p.prefix+key)
}

func (p *prefixed) Put(ctx context.Context, key string, value []byte) error {
	return p.Store.Put(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.Store.Delete(ctx, p.prefix+key)
}
