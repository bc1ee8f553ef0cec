package mailAuth_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/mailAuth"
	"github.com/MrEthical07/mailAuth/internal/logging"
	"github.com/MrEthical07/mailAuth/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testDomain = "mail.test"

type stubVerifier struct {
	ok    bool
	err   error
	calls int
	token string
}

func (v *stubVerifier) Verify(_ context.Context, token, _ string) (bool, error) {
	v.calls++
	v.token = token
	return v.ok, v.err
}

type engineFixture struct {
	engine   *mailAuth.Engine
	store    *memory.Store
	redis    *miniredis.Miniredis
	verifier *stubVerifier
	audit    *mailAuth.ChannelSink
}

func testConfig() mailAuth.Config {
	cfg := mailAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Session.RedisPrefix = "test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Registration.Domains = []string{testDomain, "other.test"}
	cfg.Registration.KeyTimeZone = "UTC"
	cfg.Registration.EnableIPThrottle = false
	cfg.Metrics.Enabled = true
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	return cfg
}

func newEngineFixture(t testing.TB, mutate func(*mailAuth.Config, *mailAuth.Builder)) *engineFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := memory.New()
	store.PutRole(mailAuth.Role{ID: 1, Name: "user", IsDefault: true})
	store.PutRole(mailAuth.Role{ID: 2, Name: "vip"})
	store.SetSetting(mailAuth.Setting{
		Registration: mailAuth.RegistrationOpen,
		KeyMode:      mailAuth.KeyClosed,
		Verification: mailAuth.VerifyClosed,
	})

	verifier := &stubVerifier{ok: true}
	sink := mailAuth.NewChannelSink(256)

	cfg := testConfig()
	b := mailAuth.New().
		WithRedis(rdb).
		WithIdentityStore(store).
		WithVerifier(verifier).
		WithAuditSink(sink).
		WithLogger(logging.Discard())
	if mutate != nil {
		mutate(&cfg, b)
	}
	engine, err := b.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &engineFixture{
		engine:   engine,
		store:    store,
		redis:    mr,
		verifier: verifier,
		audit:    sink,
	}
}

func (f *engineFixture) setting(mutate func(*mailAuth.Setting)) {
	s := mailAuth.Setting{
		Registration: mailAuth.RegistrationOpen,
		KeyMode:      mailAuth.KeyClosed,
		Verification: mailAuth.VerifyClosed,
	}
	mutate(&s)
	f.store.SetSetting(s)
}

func (f *engineFixture) register(t *testing.T, email, pwd string) *mailAuth.RegisterResult {
	t.Helper()
	res, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{Email: email, Password: pwd})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res
}

func (f *engineFixture) nextEvent(t *testing.T, eventType string) mailAuth.AuditEvent {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-f.audit.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %q audit event", eventType)
			return mailAuth.AuditEvent{}
		}
	}
}
