package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/platform/db"
	"github.com/medvault/medvault/migrations"
)

// Options selects and configures a Store backend.
type Options struct {
	Driver      string // memory, leveldb, redis, postgres
	DataDir     string
	RedisURL    string
	DatabaseURL string
	MaxConns    int32
	MinConns    int32
	KeyPrefix   string
	// AutoMigrate applies pending schema migrations when the postgres
	// driver is opened.
	AutoMigrate bool
}

// Open returns the Store selected by opts.Driver. Key prefixes apply to
// every backend except memory.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (Store, error) {
	switch opts.Driver {
	case "memory":
		logger.Info().Str("driver", "memory").Msg("using in-memory document store")
		return NewMemory(), nil

	case "leveldb", "":
		if err := os.MkdirAll(opts.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		path := filepath.Join(opts.DataDir, "medvault.ldb")
		s, err := OpenLevelDB(path)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("driver", "leveldb").Str("path", path).Msg("opened document store")
		return WithPrefix(s, opts.KeyPrefix), nil

	case "redis":
		s, err := OpenRedis(ctx, opts.RedisURL)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("driver", "redis").Msg("connected to document store")
		return WithPrefix(s, opts.KeyPrefix), nil

	case "postgres":
		pool, err := db.NewPool(ctx, opts.DatabaseURL, opts.MaxConns, opts.MinConns)
		if err != nil {
			return nil, err
		}
		if opts.AutoMigrate {
			n, err := db.NewMigrator(pool, migrations.FS).Up(ctx, db.DefaultSchema)
			if err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate documents schema: %w", err)
			}
			if n > 0 {
				logger.Info().Int("applied", n).Msg("applied schema migrations")
			}
		}
		logger.Info().Str("driver", "postgres").Msg("connected to document store")
		return WithPrefix(NewPostgres(pool), opts.KeyPrefix), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

// Unwrap returns the backend behind any key prefix decoration.
func Unwrap(s Store) Store {
	if p, ok := s.(*prefixed); ok {
		return p.Store
	}
	return s
}
