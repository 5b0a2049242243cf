package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultUserConcurrency is how many clips of one user may generate at once.
const DefaultUserConcurrency = 5

// UserGate caps concurrent generations per user across all workers.
type UserGate interface {
	// Acquire takes a slot for userID. It reports false when the user is at
	// the limit; nothing is held in that case.
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

// счётчик живёт с TTL, чтобы слоты упавшего воркера не висели вечно
var acquireSlot = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n > tonumber(ARGV[1]) then
  redis.call("DECR", KEYS[1])
  return 0
end
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return 1
`)

var releaseSlot = redis.NewScript(`
local n = redis.call("DECR", KEYS[1])
if n <= 0 then
  redis.call("DEL", KEYS[1])
end
return n
`)

type redisUserGate struct {
	rdb    redis.UniversalClient
	prefix string
	limit  int
	ttl    time.Duration
}

// NewRedisUserGate counts active generations under prefix+userID. ttl bounds
// how long a slot leaked by a crashed worker survives; use the stale-claim
// threshold.
func NewRedisUserGate(rdb redis.UniversalClient, prefix string, limit int, ttl time.Duration) UserGate {
	if limit <= 0 {
		limit = DefaultUserConcurrency
	}
	return &redisUserGate{rdb: rdb, prefix: prefix, limit: limit, ttl: ttl}
}

func (g *redisUserGate) Acquire(ctx context.Context, userID string) (bool, error) {
	n, err := acquireSlot.Run(ctx, g.rdb, []string{g.prefix + userID}, g.limit, g.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (g *redisUserGate) Release(ctx context.Context, userID string) error {
	return releaseSlot.Run(ctx, g.rdb, []string{g.prefix + userID}).Err()
}
