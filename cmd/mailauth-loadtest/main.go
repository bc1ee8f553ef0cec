// Command mailauth-loadtest drives the Redis session store with concurrent
// logins, credential checks and logouts and prints latency percentiles.
// Without -redis-addr or REDIS_ADDR it runs against an in-process miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/mailAuth/internal"
	"github.com/MrEthical07/mailAuth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type userState struct {
	id     int64
	mu     sync.Mutex
	tokens []string
}

func (u *userState) remember(token string, max int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tokens = append(u.tokens, token)
	if len(u.tokens) > max {
		u.tokens = u.tokens[len(u.tokens)-max:]
	}
}

func (u *userState) pick(r *rand.Rand) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.tokens) == 0 {
		return ""
	}
	return u.tokens[r.Intn(len(u.tokens))]
}

func (u *userState) take() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.tokens) == 0 {
		return ""
	}
	t := u.tokens[0]
	u.tokens = u.tokens[1:]
	return t
}

func main() {
	var (
		users       = flag.Int("users", 10000, "number of distinct users")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "loadtest", "session key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() { _ = client.Close() }()

	store := session.NewStore(client, session.Config{
		Prefix:     *prefix,
		MaxTokens:  session.DefaultMaxTokens,
		TTL:        24 * time.Hour,
		MaxRetries: 20,
	})

	states := make([]*userState, *users)
	for i := range states {
		states[i] = &userState{id: int64(i + 1)}
	}

	results := []struct {
		name  string
		stats phaseStats
	}{
		{"login", runPhase(*ops, *concurrency, func(r *rand.Rand) error {
			u := states[r.Intn(len(states))]
			token, err := internal.NewSessionToken()
			if err != nil {
				return err
			}
			if _, err := store.Upsert(ctx, u.id, token, session.User{ID: u.id, Email: fmt.Sprintf("u%d@load.test", u.id)}); err != nil {
				return err
			}
			u.remember(token, session.DefaultMaxTokens)
			return nil
		})},
		{"authenticate", runPhase(*ops, *concurrency, func(r *rand.Rand) error {
			u := states[r.Intn(len(states))]
			token := u.pick(r)
			if token == "" {
				return nil
			}
			_, err := store.Contains(ctx, u.id, token)
			return err
		})},
		{"logout", runPhase(*ops, *concurrency, func(r *rand.Rand) error {
			u := states[r.Intn(len(states))]
			token := u.take()
			if token == "" {
				return nil
			}
			_, err := store.Remove(ctx, u.id, token)
			return err
		})},
	}

	fmt.Println("---- results ----")
	for _, res := range results {
		printStats(res.name, res.stats)
	}
}

func runPhase(ops, concurrency int, op func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
