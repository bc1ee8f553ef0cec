package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRegistrationRateLimited = errors.New("registration rate limited")
	ErrRegistrationUnavailable = errors.New("registration limiter redis unavailable")
)

type RegistrationConfig struct {
	Prefix                   string
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxAttempts              int
	Cooldown                 time.Duration
}

type RegistrationLimiter struct {
	redis  redis.UniversalClient
	config RegistrationConfig
}

func NewRegistrationLimiter(redisClient redis.UniversalClient, cfg RegistrationConfig) *RegistrationLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "mail:auth"
	}
	return &RegistrationLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enforce counts one registration attempt for email and ip and fails once
// either counter is over budget for the current window.
func (l *RegistrationLimiter) Enforce(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}

	if l.config.EnableIdentifierThrottle && email != "" {
		if err := l.enforceKey(ctx, l.identifierKey(email)); err != nil {
			return err
		}
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceKey(ctx, l.ipKey(ip)); err != nil {
			return err
		}
	}

	return nil
}

func (l *RegistrationLimiter) enforceKey(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistrationUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRegistrationUnavailable, err)
		}
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrRegistrationRateLimited
	}

	return nil
}

func (l *RegistrationLimiter) identifierKey(email string) string {
	return l.config.Prefix + ":reg:id:" + strings.ToLower(email)
}

func (l *RegistrationLimiter) ipKey(ip string) string {
	return l.config.Prefix + ":reg:ip:" + ip
}
