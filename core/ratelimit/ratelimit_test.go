package ratelimit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tadris/core"
)

func setNow(t time.Time) func() {
	NowFunc = func() time.Time { return t }
	return func() { NowFunc = time.Now }
}

func TestDefaultPolicies(t *testing.T) {
	tbl := DefaultTable()
	tests := []struct {
		name  string
		max   int
		keyBy string
	}{
		{PolicyAPI, 60, KeyUserOrIP},
		{PolicyLogin, 5, KeyIP},
		{PolicyRegister, 3, KeyIP},
		{PolicyPasswordReset, 3, KeyIP},
		{PolicyReportsExport, 10, KeyUserOrIP},
		{PolicyUploads, 20, KeyUserOrIP},
		{PolicyPublic, 120, KeyIP},
		{PolicyNotifications, 5, KeyUserOrIP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := tbl.Get(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.max, p.Max)
			assert.Equal(t, time.Minute, p.Window)
			assert.Equal(t, tt.keyBy, p.KeyBy)
		})
	}
	assert.Len(t, tbl.Policies(), len(tests))
}

func TestPolicyKey(t *testing.T) {
	user := Identity{UserID: "7", IP: "10.0.0.1"}
	anon := Identity{IP: "10.0.0.1"}

	assert.Equal(t, "user:7", ByUserOrIP(user))
	assert.Equal(t, "ip:10.0.0.1", ByUserOrIP(anon))
	assert.Equal(t, "ip:10.0.0.1", ByIP(user))
}

func TestLimiter_LoginWindow(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC)
	defer setNow(start)()

	l := NewLimiter(DefaultTable(), NewMemoryStore())
	ctx := context.Background()
	id := Identity{IP: "192.168.1.9"}

	for i := 1; i <= 5; i++ {
		d, err := l.Allow(ctx, PolicyLogin, id)
		require.NoError(t, err, "call %d", i)
		assert.True(t, d.Allowed)
		assert.Equal(t, 5-i, d.Remaining)
	}

	d, err := l.Allow(ctx, PolicyLogin, id)
	assert.False(t, d.Allowed)
	var rerr *core.RateLimitError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, PolicyLogin, rerr.Policy)
	assert.Equal(t, 55*time.Second, rerr.RetryAfter)
	assert.Equal(t, 55, rerr.RetryAfterSeconds())

	// another address has its own counter
	_, err = l.Allow(ctx, PolicyLogin, Identity{IP: "192.168.1.10"})
	assert.NoError(t, err)

	// next window
	NowFunc = func() time.Time { return start.Add(time.Minute) }
	d, err = l.Allow(ctx, PolicyLogin, id)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiter_UnknownPolicy(t *testing.T) {
	l := NewLimiter(DefaultTable(), NewMemoryStore())
	_, err := l.Allow(context.Background(), "nope", Identity{IP: "1.1.1.1"})
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) IncrementAndCheck(context.Context, string, string, time.Time, time.Duration) (int64, error) {
	return 0, errors.New("redis: connection refused")
}

func TestLimiter_StoreFailure(t *testing.T) {
	l := NewLimiter(DefaultTable(), failingStore{})
	d, err := l.Allow(context.Background(), PolicyAPI, Identity{IP: "1.1.1.1"})
	assert.Error(t, err)
	assert.False(t, d.Allowed)
	var rerr *core.RateLimitError
	assert.False(t, errors.As(err, &rerr))
}

func TestLimiter_ConcurrentBoundary(t *testing.T) {
	defer setNow(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))()

	l := NewLimiter(DefaultTable(), NewMemoryStore())
	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, _ := l.Allow(context.Background(), PolicyAPI, Identity{UserID: "1"}); d.Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 60, allowed)
}

func TestMemoryStore_Prune(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	defer setNow(start)()

	s := NewMemoryStore()
	_, _ = s.IncrementAndCheck(context.Background(), "api", "ip:1", start, time.Minute)
	_, _ = s.IncrementAndCheck(context.Background(), "api", "ip:2", start, time.Minute)
	assert.Equal(t, 0, s.Prune())

	NowFunc = func() time.Time { return start.Add(time.Minute) }
	assert.Equal(t, 2, s.Prune())
	assert.Zero(t, s.Len())
}

func TestParsePolicies(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		check   func(t *testing.T, tbl *Table)
		wantErr bool
	}{
		{
			name: "empty keeps defaults",
			yaml: "",
			check: func(t *testing.T, tbl *Table) {
				p, _ := tbl.Get(PolicyLogin)
				assert.Equal(t, 5, p.Max)
			},
		},
		{
			name: "override",
			yaml: "policies:\n  - name: login\n    max: 10\n    window: 5m\n",
			check: func(t *testing.T, tbl *Table) {
				p, _ := tbl.Get(PolicyLogin)
				assert.Equal(t, 10, p.Max)
				assert.Equal(t, 5*time.Minute, p.Window)
				assert.Equal(t, KeyIP, p.KeyBy)
			},
		},
		{
			name: "new policy",
			yaml: "policies:\n  - name: exams\n    max: 2\n    key: ip\n",
			check: func(t *testing.T, tbl *Table) {
				p, ok := tbl.Get("exams")
				require.True(t, ok)
				assert.Equal(t, 2, p.Max)
				assert.Equal(t, time.Minute, p.Window)
			},
		},
		{name: "new policy without max", yaml: "policies:\n  - name: exams\n", wantErr: true},
		{name: "bad window", yaml: "policies:\n  - name: login\n    window: soon\n", wantErr: true},
		{name: "bad key", yaml: "policies:\n  - name: login\n    key: cookie\n", wantErr: true},
		{name: "bad yaml", yaml: "policies: [", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ParsePolicies(strings.NewReader(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, tbl)
		})
	}
}
