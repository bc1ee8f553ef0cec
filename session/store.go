package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// ErrRedisUnavailable is returned when Redis cannot be reached or errors.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrContention is returned when an optimistic transaction kept losing races
// after every retry.
var ErrContention = errors.New("session entry contention")

// ErrEntryNotFound is returned by Get when the user has no entry.
var ErrEntryNotFound = errors.New("session entry not found")

// Config tunes a [Store].
type Config struct {
	Prefix       string
	MaxTokens    int
	TTL          time.Duration
	MaxRetries   uint64
	RetryBackoff time.Duration
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Store persists session entries in Redis.
type Store struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

// NewStore returns a Store over redisClient. Zero values in cfg fall back to
// defaults: prefix "mail:auth", 10 tokens, 5 retries at 10ms.
func NewStore(redisClient redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "mail:auth"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 10 * time.Millisecond
	}
	return &Store{
		redis:  redisClient,
		config: cfg,
		now:    time.Now,
	}
}

// Upsert appends token to the user's entry, creating the entry seeded with
// snapshot when none exists, and rewrites it with a fresh TTL. The returned
// entry is the state that was written.
func (s *Store) Upsert(ctx context.Context, userID int64, token string, snapshot User) (*Entry, error) {
	if token == "" {
		return nil, errors.New("session token must not be empty")
	}
	key := s.key(userID)

	var written *Entry
	err := s.mutate(ctx, key, func(tx *redis.Tx) error {
		entry, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if entry == nil {
			entry = &Entry{
				Tokens:      []string{},
				User:        snapshot,
				RefreshTime: s.now().UTC(),
			}
		}
		entry.push(token, s.config.MaxTokens)

		data, err := encodeEntry(entry)
		if err != nil {
			return err
		}
		if err := s.exec(ctx, tx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.config.TTL)
			return nil
		}); err != nil {
			return err
		}
		written = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

// Remove drops token from the user's entry without touching the key's TTL.
// It reports whether a token was removed; a missing entry or token is a
// no-op.
func (s *Store) Remove(ctx context.Context, userID int64, token string) (bool, error) {
	key := s.key(userID)

	removed := false
	err := s.mutate(ctx, key, func(tx *redis.Tx) error {
		removed = false
		entry, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if entry == nil || !entry.remove(token) {
			return nil
		}

		data, err := encodeEntry(entry)
		if err != nil {
			return err
		}
		if err := s.exec(ctx, tx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		}); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Get loads the user's entry.
func (s *Store) Get(ctx context.Context, userID int64) (*Entry, error) {
	entry, err := s.load(ctx, s.redis, s.key(userID))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

// Contains reports whether token is currently listed for the user.
func (s *Store) Contains(ctx context.Context, userID int64, token string) (bool, error) {
	entry, err := s.Get(ctx, userID)
	if errors.Is(err, ErrEntryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return entry.Contains(token), nil
}

// Delete drops the whole entry, ending every session of the user.
func (s *Store) Delete(ctx context.Context, userID int64) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// TTL returns the remaining lifetime of the user's entry.
func (s *Store) TTL(ctx context.Context, userID int64) (time.Duration, error) {
	ttl, err := s.redis.TTL(ctx, s.key(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ttl, nil
}

func (s *Store) key(userID int64) string {
	return s.config.Prefix + ":" + strconv.FormatInt(userID, 10)
}

func (s *Store) load(ctx context.Context, r getter, key string) (*Entry, error) {
	data, err := r.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodeEntry(data)
}

// exec runs fn inside MULTI/EXEC. A watch conflict is passed through
// unwrapped so mutate can retry it.
func (s *Store) exec(ctx context.Context, tx *redis.Tx, fn func(redis.Pipeliner) error) error {
	_, err := tx.TxPipelined(ctx, fn)
	if err == nil || errors.Is(err, redis.TxFailedErr) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func (s *Store) mutate(ctx context.Context, key string, fn func(*redis.Tx) error) error {
	backoff := retry.WithMaxRetries(s.config.MaxRetries, retry.NewConstant(s.config.RetryBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.redis.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		return ErrContention
	}
	if err != nil && !errors.Is(err, ErrRedisUnavailable) && !errors.Is(err, ErrEntryCorrupt) && ctx.Err() == nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return err
}

// Ping reports Redis availability and round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := s.now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.now().Sub(start), nil
}
