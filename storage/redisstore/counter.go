package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/tadris/core"
	"github.com/trezcool/tadris/core/ratelimit"
)

const keyPrefix = "tadris:ratelimit:"

// incrementScript increments the window counter and sets its expiry on first use.
var incrementScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// CounterStore keeps rate limit counters in Redis; keys expire with their window.
type CounterStore struct {
	client redis.Scripter
}

var _ ratelimit.CounterStore = (*CounterStore)(nil)

func NewCounterStore(client redis.Scripter) *CounterStore {
	return &CounterStore{client: client}
}

// NewClient connects to the configured Redis server.
func NewClient(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

func counterKey(policy, key string, windowStart time.Time) string {
	return keyPrefix + policy + ":" + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)
}

func (s *CounterStore) IncrementAndCheck(ctx context.Context, policy, key string, windowStart time.Time, window time.Duration) (int64, error) {
	// the key outlives its window by a second so late requests of the window still find it
	ttl := window + time.Second
	count, err := incrementScript.Run(ctx, s.client, []string{counterKey(policy, key, windowStart)}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, errors.Wrapf(err, "incrementing %s counter", policy)
	}
	return count, nil
}
