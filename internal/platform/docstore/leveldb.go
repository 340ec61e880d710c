package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDB stores each collection as one value in a local LevelDB database.
// Writes are synced so a completed Put survives a crash.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) the database directory at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

// NewLevelDB wraps an already opened database.
func NewLevelDB(db *leveldb.DB) *LevelDB {
	return &LevelDB{db: db}
}

func (l *LevelDB) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (l *LevelDB) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.Put([]byte(key), value, &opt.WriteOptions{Sync: true})
}

func (l *LevelDB) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.Delete([]byte(key), &opt.WriteOptions{Sync: true})
}

// Ping reports leveldb.ErrClosed once the database has been closed.
func (l *LevelDB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := l.db.GetProperty("leveldb.num-files-at-level0")
	return err
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
