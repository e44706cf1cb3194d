package userlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/UnKnowSoDev/pianissimo-gacha/db/redis"
	apperrors "github.com/UnKnowSoDev/pianissimo-gacha/errors"
)

const (
	lockKeyPrefix   = "gacha:spinlock:"
	defaultLeaseTTL = 30 * time.Second
	retryInterval   = 50 * time.Millisecond
)

// RedisLocker is a Locker for multi-instance deployments, built on Redis
// SETNX leases. Each acquisition writes a unique token so release only
// deletes a lease this holder still owns; the TTL bounds the damage of a
// crashed holder.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisLocker creates a Redis-backed locker with the default lease TTL.
func NewRedisLocker(client *redis.Client, logger zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    defaultLeaseTTL,
		logger: logger.With().Str("component", "userlock").Logger(),
	}
}

// Acquire implements Locker by polling SETNX until the lease is obtained or
// ctx is done.
func (rl *RedisLocker) Acquire(ctx context.Context, userID string) (func(), error) {
	key := lockKeyPrefix + userID
	token := uuid.New().String()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := rl.client.SetNX(ctx, key, token, rl.ttl)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrLockError,
				fmt.Sprintf("failed to acquire lock for user %s", userID))
		}
		if ok {
			return func() { rl.release(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// release deletes the lease only if this holder's token is still present.
func (rl *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	current, err := rl.client.Get(ctx, key)
	if err != nil {
		rl.logger.Warn().Err(err).Str("key", key).Msg("Failed to read lock for release")
		return
	}
	if current != token {
		// Lease expired and was taken by another holder.
		rl.logger.Warn().Str("key", key).Msg("Lock token mismatch on release, skipping delete")
		return
	}
	if err := rl.client.Delete(ctx, key); err != nil {
		rl.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete lock")
	}
}
