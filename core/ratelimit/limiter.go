package ratelimit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core"
)

// NowFunc is the limiter clock. Mockable.
var NowFunc = time.Now

// CounterStore counts requests per (policy, identity key, window).
// IncrementAndCheck must add one and return the new count in a single atomic step.
type CounterStore interface {
	IncrementAndCheck(ctx context.Context, policy, key string, windowStart time.Time, window time.Duration) (int64, error)
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

type Limiter struct {
	table *Table
	store CounterStore
}

func NewLimiter(table *Table, store CounterStore) *Limiter {
	return &Limiter{table: table, store: store}
}

func (l *Limiter) Table() *Table { return l.table }

// Allow counts one request of id against policy.
// A rejected request returns a *core.RateLimitError along with the decision.
func (l *Limiter) Allow(ctx context.Context, policy string, id Identity) (Decision, error) {
	p, ok := l.table.Get(policy)
	if !ok {
		return Decision{}, errors.Errorf("unknown rate limit policy %q", policy)
	}

	now := NowFunc().UTC()
	windowStart := now.Truncate(p.Window)
	resetAt := windowStart.Add(p.Window)

	count, err := l.store.IncrementAndCheck(ctx, p.Name, p.Key(id), windowStart, p.Window)
	if err != nil {
		return Decision{}, errors.Wrapf(err, "counting %s request", p.Name)
	}

	d := Decision{
		Allowed: count <= int64(p.Max),
		Limit:   p.Max,
		ResetAt: resetAt,
	}
	if remaining := int64(p.Max) - count; remaining > 0 {
		d.Remaining = int(remaining)
	}
	if !d.Allowed {
		d.RetryAfter = resetAt.Sub(now)
		return d, &core.RateLimitError{Policy: p.Name, Limit: p.Max, RetryAfter: d.RetryAfter}
	}
	return d, nil
}
