package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrCounterUnavailable is returned when the counter key cannot be read or
// written.
var ErrCounterUnavailable = errors.New("verification counter redis unavailable")

// VerificationCounter tracks registrations that skipped human verification.
type VerificationCounter struct {
	redis redis.UniversalClient
	key   string
}

// NewVerificationCounter returns a counter stored under "<prefix>:regverify:count".
func NewVerificationCounter(redisClient redis.UniversalClient, prefix string) *VerificationCounter {
	if prefix == "" {
		prefix = "mail:auth"
	}
	return &VerificationCounter{
		redis: redisClient,
		key:   prefix + ":regverify:count",
	}
}

// Count returns the current rolling count; a missing key counts as zero.
func (c *VerificationCounter) Count(ctx context.Context) (int64, error) {
	n, err := c.redis.Get(ctx, c.key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// Increment records one skipped challenge and returns the new count.
func (c *VerificationCounter) Increment(ctx context.Context) (int64, error) {
	n, err := c.redis.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	return n, nil
}

// Reset starts a new rolling window after a challenge was satisfied.
func (c *VerificationCounter) Reset(ctx context.Context) error {
	if err := c.redis.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	return nil
}
