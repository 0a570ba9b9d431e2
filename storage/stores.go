// Package storage opens the storage backend selected by the configuration.
package storage

import (
	"context"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core"
	"github.com/trezcool/tadris/core/ratelimit"
	"github.com/trezcool/tadris/core/setting"
	"github.com/trezcool/tadris/core/user"
	"github.com/trezcool/tadris/core/validation"
	"github.com/trezcool/tadris/storage/database"
	"github.com/trezcool/tadris/storage/database/inmem"
	"github.com/trezcool/tadris/storage/database/sqlboiler"
	"github.com/trezcool/tadris/storage/database/sqlx"
	"github.com/trezcool/tadris/storage/redisstore"
)

const (
	EnginePostgres = "postgres"
	EngineMemory   = "memory"

	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Stores bundles the repositories of one backend.
type Stores struct {
	Users    user.Repository
	Settings setting.Store
	Lookup   validation.Lookup
	Counters ratelimit.CounterStore

	// DB is nil with the memory engine.
	DB *sqlx.DB

	closers []io.Closer
}

// Open connects to the configured database engine and rate limit counter store.
// migrate runs the pending migrations on PostgreSQL.
func Open(ctx context.Context, conf *core.Config, migrate bool) (*Stores, error) {
	s := new(Stores)

	switch conf.Database.Engine {
	case EnginePostgres:
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		s.closers = append(s.closers, db)
		if migrate {
			if err := database.Migrate(ctx, db.DB); err != nil {
				_ = s.Close()
				return nil, errors.Wrap(err, "migrating database")
			}
		}
		s.DB = db
		s.Users = boiledrepos.NewUserRepository(db)
		s.Settings = sqlxrepos.NewSettingStore(db)
		s.Lookup = sqlxrepos.NewLookup(db)
	case EngineMemory:
		mem := inmemdb.Open()
		s.Users = inmemdb.NewUserRepository(mem)
		s.Settings = inmemdb.NewSettingStore(mem)
		s.Lookup = inmemdb.NewLookup(mem)
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}

	switch conf.RateLimit.Store {
	case StoreMemory:
		s.Counters = ratelimit.NewMemoryStore()
	case StoreRedis:
		client, err := redisstore.NewClient(ctx, conf.Redis)
		if err != nil {
			_ = s.Close()
			return nil, errors.Wrap(err, "connecting to redis")
		}
		s.closers = append(s.closers, client)
		s.Counters = redisstore.NewCounterStore(client)
	case StorePostgres:
		if s.DB == nil {
			_ = s.Close()
			return nil, errors.New("the postgres rate limit store needs the postgres database engine")
		}
		s.Counters = sqlxrepos.NewCounterStore(s.DB)
	default:
		_ = s.Close()
		return nil, errors.Errorf("unknown rate limit store %q", conf.RateLimit.Store)
	}
	return s, nil
}

// Close releases the connections, in reverse opening order.
func (s *Stores) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
