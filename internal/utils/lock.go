package utils

import (
	"context" // Context for Redis operations
	"errors"  // Sentinel errors
	"time"    // Lease durations

	"github.com/google/uuid"       // Lock owner tokens
	"github.com/redis/go-redis/v9" // Redis client
)

// ErrLockHeld is returned when another owner holds the lock
var ErrLockHeld = errors.New("lock held by another owner")

// releaseScript deletes the key only if the caller still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short leases on Redis keys
type Locker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLocker builds a Locker; a nil client yields a no-op locker
func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, ttl: ttl}
}

// Acquire takes the lock for key and returns its release function
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.rdb == nil {
		return func() {}, nil
	}
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, "lock:"+key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func() {
		// Release on a fresh context so a cancelled request still unlocks
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{"lock:" + key}, token).Err()
	}, nil
}
