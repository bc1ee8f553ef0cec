package mailAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/mailAuth/session"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

// Health pings Redis. It never fails; an unreachable Redis reports
// RedisAvailable false.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.sessions == nil {
		return HealthStatus{}
	}

	latency, err := e.sessions.Ping(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "redis health check failed", "error", err)
	}
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   latency,
	}
}

// ActiveSessionCount returns how many session tokens the user currently
// holds. A user without an entry has zero.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID int64) (int, error) {
	entry, err := e.sessions.Get(ctx, userID)
	if errors.Is(err, session.ErrEntryNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, ErrInternal.withCause(err)
	}
	return len(entry.Tokens), nil
}

// LoginAttempts returns the failed-login counter for email. Missing counters
// read as zero.
func (e *Engine) LoginAttempts(ctx context.Context, email string) (int, error) {
	if email == "" {
		return 0, nil
	}
	n, err := e.loginLimiter.LoginAttempts(ctx, email)
	if err != nil {
		return 0, ErrInternal.withCause(err)
	}
	return n, nil
}

// SessionTTL returns the remaining lifetime of the user's session entry. A
// user without an entry reports zero.
func (e *Engine) SessionTTL(ctx context.Context, userID int64) (time.Duration, error) {
	ttl, err := e.sessions.TTL(ctx, userID)
	if err != nil {
		return 0, ErrInternal.withCause(err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
