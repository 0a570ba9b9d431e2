package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core/ratelimit"
)

// CounterStore keeps rate limit counters in PostgreSQL, shared by every instance.
type CounterStore struct {
	db sqlx.ExtContext
}

var _ ratelimit.CounterStore = (*CounterStore)(nil)

func NewCounterStore(db sqlx.ExtContext) *CounterStore {
	return &CounterStore{db: db}
}

const incrementCounter = `INSERT INTO rate_limit_counters (policy, key, window_start, count, expires_at)
VALUES ($1, $2, $3, 1, $4)
ON CONFLICT (policy, key, window_start) DO UPDATE SET count = rate_limit_counters.count + 1
RETURNING count`

func (s *CounterStore) IncrementAndCheck(ctx context.Context, policy, key string, windowStart time.Time, window time.Duration) (int64, error) {
	var count int64
	windowStart = windowStart.UTC()
	if err := sqlx.GetContext(ctx, s.db, &count, incrementCounter, policy, key, windowStart, windowStart.Add(window)); err != nil {
		return 0, errors.Wrapf(err, "incrementing %s counter", policy)
	}
	return count, nil
}

// PruneExpired deletes the counters of windows that ended before now.
func (s *CounterStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM rate_limit_counters WHERE expires_at <= $1", now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "pruning counters")
	}
	return res.RowsAffected()
}
