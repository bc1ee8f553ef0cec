package mailAuth_test

import (
	"context"
	"testing"
	"time"
)

func TestHealthReportsRedis(t *testing.T) {
	f := newEngineFixture(t, nil)

	if h := f.engine.Health(context.Background()); !h.RedisAvailable {
		t.Fatalf("expected redis to be available, got %+v", h)
	}

	f.redis.SetError("LOADING")
	if h := f.engine.Health(context.Background()); h.RedisAvailable {
		t.Fatal("expected redis to be reported unavailable")
	}
}

func TestActiveSessionCount(t *testing.T) {
	f := newEngineFixture(t, nil)
	reg := f.register(t, "a@mail.test", "secret1")
	ctx := context.Background()

	if n, err := f.engine.ActiveSessionCount(ctx, reg.UserID); err != nil || n != 0 {
		t.Fatalf("expected no sessions before login, got %d, %v", n, err)
	}
	for range 3 {
		if _, err := f.engine.Login(ctx, "a@mail.test", "secret1"); err != nil {
			t.Fatalf("login: %v", err)
		}
	}
	if n, err := f.engine.ActiveSessionCount(ctx, reg.UserID); err != nil || n != 3 {
		t.Fatalf("expected 3 sessions, got %d, %v", n, err)
	}
}

func TestLoginAttemptsCountsFailures(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.register(t, "a@mail.test", "secret1")
	ctx := context.Background()

	for range 2 {
		if _, err := f.engine.Login(ctx, "a@mail.test", "wrong-pass"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if n, err := f.engine.LoginAttempts(ctx, "a@mail.test"); err != nil || n != 2 {
		t.Fatalf("expected 2 attempts, got %d, %v", n, err)
	}

	if _, err := f.engine.Login(ctx, "a@mail.test", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if n, _ := f.engine.LoginAttempts(ctx, "a@mail.test"); n != 0 {
		t.Fatalf("successful login must reset the counter, got %d", n)
	}
	if n, _ := f.engine.LoginAttempts(ctx, ""); n != 0 {
		t.Fatal("empty email reads as zero")
	}
}

func TestSessionTTL(t *testing.T) {
	f := newEngineFixture(t, nil)
	reg := f.register(t, "a@mail.test", "secret1")
	ctx := context.Background()

	if ttl, err := f.engine.SessionTTL(ctx, reg.UserID); err != nil || ttl != 0 {
		t.Fatalf("expected zero before login, got %v, %v", ttl, err)
	}
	if _, err := f.engine.Login(ctx, "a@mail.test", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if ttl, err := f.engine.SessionTTL(ctx, reg.UserID); err != nil || ttl != 30*24*time.Hour {
		t.Fatalf("expected 30d, got %v, %v", ttl, err)
	}

	f.redis.SetError("LOADING")
	if _, err := f.engine.SessionTTL(ctx, reg.UserID); err == nil {
		t.Fatal("expected an error while redis is failing")
	}
}
