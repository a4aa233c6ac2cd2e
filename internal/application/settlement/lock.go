package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "settlement_lock:"

// LockManager serializes settlement attempts per gig with a Redis SETNX lock.
// The TTL bounds how long a crashed attempt can hold the lock; the payment
// CAS in the store is the correctness backstop either way.
type LockManager struct {
	Rdb *redis.Client
	TTL time.Duration
}

// Acquire takes the per-gig lock and returns a release func. Returns
// ErrGigLocked when another attempt holds it.
func (l *LockManager) Acquire(ctx context.Context, gigID uuid.UUID) (func(), error) {
	ttl := l.TTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	key := lockPrefix + gigID.String()

	ok, err := l.Rdb.SetNX(ctx, key, time.Now().UnixMilli(), ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrGigLocked
	}
	return func() {
		l.Rdb.Del(context.Background(), key)
	}, nil
}
