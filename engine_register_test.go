package mailAuth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/mailAuth"
	"github.com/MrEthical07/mailAuth/store/memory"
)

func TestRegisterCreatesUserAndAccount(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := mailAuth.WithClientIP(context.Background(), "10.0.0.1")

	res, err := f.engine.Register(ctx, mailAuth.RegisterRequest{Email: "alice@mail.test", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.UserID == 0 || res.RoleID != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.NextChallengeRequired {
		t.Fatal("closed verification must not require a challenge")
	}

	acct, err := f.store.AccountByEmail(context.Background(), "alice@mail.test")
	if err != nil {
		t.Fatalf("account lookup: %v", err)
	}
	if acct.UserID != res.UserID || acct.Name != "alice" {
		t.Fatalf("unexpected account %+v", acct)
	}

	user, err := f.store.UserByEmail(context.Background(), "alice@mail.test")
	if err != nil {
		t.Fatalf("user lookup: %v", err)
	}
	if user.PasswordHash == "" || user.PasswordSalt == "" || user.PasswordHash == "secret1" {
		t.Fatalf("password must be stored hashed: %+v", user)
	}
	if a, ok := f.store.LastActivity(res.UserID); !ok || a.IP != "10.0.0.1" {
		t.Fatalf("expected last activity from 10.0.0.1, got %+v", a)
	}

	ev := f.nextEvent(t, "register_success")
	if ev.UserID != res.UserID || ev.IP != "10.0.0.1" {
		t.Fatalf("unexpected audit event %+v", ev)
	}
	if got := f.engine.MetricsSnapshot().Counters[mailAuth.MetricRegisterSuccess]; got != 1 {
		t.Fatalf("expected 1 register success, got %d", got)
	}
}

func TestRegisterRefusalsWriteNothing(t *testing.T) {
	long := strings.Repeat("a", 31)

	tests := []struct {
		name    string
		setting func(*mailAuth.Setting)
		req     mailAuth.RegisterRequest
		want    error
	}{
		{
			name:    "registration closed",
			setting: func(s *mailAuth.Setting) { s.Registration = mailAuth.RegistrationClosed },
			req:     mailAuth.RegisterRequest{Email: "a@mail.test", Password: "secret1"},
			want:    mailAuth.ErrRegistrationDisabled,
		},
		{
			name: "not an email",
			req:  mailAuth.RegisterRequest{Email: "not-an-email", Password: "secret1"},
			want: mailAuth.ErrNotEmailFormat,
		},
		{
			name: "password too long wins over long local part",
			req:  mailAuth.RegisterRequest{Email: long + "@mail.test", Password: long},
			want: mailAuth.ErrPasswordTooLong,
		},
		{
			name: "local part too long",
			req:  mailAuth.RegisterRequest{Email: long + "@mail.test", Password: "secret1"},
			want: mailAuth.ErrEmailNameTooLong,
		},
		{
			name: "password too short",
			req:  mailAuth.RegisterRequest{Email: "a@mail.test", Password: "12345"},
			want: mailAuth.ErrPasswordTooShort,
		},
		{
			name: "domain not served",
			req:  mailAuth.RegisterRequest{Email: "a@elsewhere.test", Password: "secret1"},
			want: mailAuth.ErrEmailDomainInvalid,
		},
		{
			name:    "key required but missing",
			setting: func(s *mailAuth.Setting) { s.KeyMode = mailAuth.KeyRequired },
			req:     mailAuth.RegisterRequest{Email: "a@mail.test", Password: "secret1"},
			want:    mailAuth.ErrMissingKey,
		},
		{
			name:    "key required but unknown",
			setting: func(s *mailAuth.Setting) { s.KeyMode = mailAuth.KeyRequired },
			req:     mailAuth.RegisterRequest{Email: "a@mail.test", Password: "secret1", RegistrationKey: "NOPE"},
			want:    mailAuth.ErrInvalidKey,
		},
		{
			name:    "key required but exhausted",
			setting: func(s *mailAuth.Setting) { s.KeyMode = mailAuth.KeyRequired },
			req:     mailAuth.RegisterRequest{Email: "a@mail.test", Password: "secret1", RegistrationKey: "EMPTY"},
			want:    mailAuth.ErrKeyExhausted,
		},
		{
			name:    "key required but expired",
			setting: func(s *mailAuth.Setting) { s.KeyMode = mailAuth.KeyRequired },
			req:     mailAuth.RegisterRequest{Email: "a@mail.test", Password: "secret1", RegistrationKey: "OLD"},
			want:    mailAuth.ErrKeyExpired,
		},
		{
			name:    "verification rejected",
			setting: func(s *mailAuth.Setting) { s.Verification = mailAuth.VerifyOpen },
			req:     mailAuth.RegisterRequest{Email: "a@mail.test", Password: "secret1", VerificationToken: "bad"},
			want:    mailAuth.ErrVerificationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, nil)
			f.store.PutKey(mailAuth.RegistrationKey{ID: 1, Code: "EMPTY", Remaining: 0, RoleID: 2})
			f.store.PutKey(mailAuth.RegistrationKey{ID: 2, Code: "OLD", Remaining: 5, RoleID: 2, ExpiresAt: time.Now().AddDate(0, 0, -2)})
			f.verifier.ok = false
			if tt.setting != nil {
				f.setting(tt.setting)
			}

			_, err := f.engine.Register(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if n := len(f.store.Users()); n != 0 {
				t.Fatalf("refused registration left %d users", n)
			}
			if n := len(f.store.Accounts()); n != 0 {
				t.Fatalf("refused registration left %d accounts", n)
			}
			if k, _ := f.store.Key("OLD"); k.Remaining != 5 {
				t.Fatalf("refused registration consumed a key use: %d", k.Remaining)
			}
		})
	}
}

func TestRegisterCapacity(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.setting(func(s *mailAuth.Setting) { s.MaxUsers = 1 })

	f.register(t, "a@mail.test", "secret1")
	_, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{Email: "b@mail.test", Password: "secret1"})
	if !errors.Is(err, mailAuth.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestRegisterExistingAccounts(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.register(t, "a@mail.test", "secret1")
	f.store.PutUser(mailAuth.User{Email: "gone@mail.test", Deleted: true})

	_, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{Email: "a@mail.test", Password: "secret1"})
	if !errors.Is(err, mailAuth.ErrAccountAlreadyExists) {
		t.Fatalf("expected ErrAccountAlreadyExists, got %v", err)
	}

	_, err = f.engine.Register(context.Background(), mailAuth.RegisterRequest{Email: "gone@mail.test", Password: "secret1"})
	if !errors.Is(err, mailAuth.ErrAccountSoftDeleted) {
		t.Fatalf("expected ErrAccountSoftDeleted, got %v", err)
	}
}

func TestRegisterOptionalKeyFallsBackToDefaultRole(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.setting(func(s *mailAuth.Setting) { s.KeyMode = mailAuth.KeyOptional })

	res, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{
		Email: "a@mail.test", Password: "secret1", RegistrationKey: "DOES-NOT-EXIST",
	})
	if err != nil {
		t.Fatalf("optional mode must accept an unknown key: %v", err)
	}
	if res.RoleID != 1 {
		t.Fatalf("expected default role, got %d", res.RoleID)
	}
}

func TestRegisterRedeemsKey(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.setting(func(s *mailAuth.Setting) { s.KeyMode = mailAuth.KeyOptional })
	f.store.PutKey(mailAuth.RegistrationKey{ID: 7, Code: "ABC", Remaining: 3, RoleID: 2})

	res, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{
		Email: "a@mail.test", Password: "secret1", RegistrationKey: " ABC ",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.RoleID != 2 {
		t.Fatalf("expected role 2 from key, got %d", res.RoleID)
	}
	if k, _ := f.store.Key("ABC"); k.Remaining != 2 {
		t.Fatalf("expected remaining 2, got %d", k.Remaining)
	}
	if got := f.engine.MetricsSnapshot().Counters[mailAuth.MetricKeyRedeemed]; got != 1 {
		t.Fatalf("expected 1 key redemption, got %d", got)
	}
}

// staleKeyStore reports a key balance read before a concurrent redemption
// drained it.
type staleKeyStore struct {
	*memory.Store
}

func (s staleKeyStore) RegistrationKeyByCode(ctx context.Context, code string) (*mailAuth.RegistrationKey, error) {
	k, err := s.Store.RegistrationKeyByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	k.Remaining = 1
	return k, nil
}

func newStaleKeyFixture(t *testing.T, mode mailAuth.KeyMode, defaultDomains string) (*engineFixture, *memory.Store) {
	t.Helper()
	store := memory.New()
	store.PutRole(mailAuth.Role{ID: 1, Name: "user", IsDefault: true, AllowedDomains: defaultDomains})
	store.PutRole(mailAuth.Role{ID: 2, Name: "vip"})
	store.PutKey(mailAuth.RegistrationKey{ID: 7, Code: "ABC", Remaining: 0, RoleID: 2})
	store.SetSetting(mailAuth.Setting{Registration: mailAuth.RegistrationOpen, KeyMode: mode})

	f := newEngineFixture(t, func(_ *mailAuth.Config, b *mailAuth.Builder) {
		b.WithIdentityStore(staleKeyStore{Store: store})
	})
	return f, store
}

func TestRegisterOptionalKeyDrainedBeforeCommit(t *testing.T) {
	f, store := newStaleKeyFixture(t, mailAuth.KeyOptional, "")

	res, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{
		Email: "a@mail.test", Password: "secret1", RegistrationKey: "ABC",
	})
	if err != nil {
		t.Fatalf("optional mode must fall back to the default role: %v", err)
	}
	if res.RoleID != 1 {
		t.Fatalf("expected default role 1, got %d", res.RoleID)
	}
	users := store.Users()
	if len(users) != 1 || users[0].RegKeyID != 0 {
		t.Fatalf("expected one user without a key, got %+v", users)
	}
	if k, _ := store.Key("ABC"); k.Remaining != 0 {
		t.Fatalf("remaining must stay 0, got %d", k.Remaining)
	}
	if got := f.engine.MetricsSnapshot().Counters[mailAuth.MetricKeyRedeemed]; got != 0 {
		t.Fatalf("fallback must not count a redemption, got %d", got)
	}
}

func TestRegisterOptionalKeyDrainedFallbackChecksDomain(t *testing.T) {
	f, store := newStaleKeyFixture(t, mailAuth.KeyOptional, "other.test")

	_, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{
		Email: "a@mail.test", Password: "secret1", RegistrationKey: "ABC",
	})
	if !errors.Is(err, mailAuth.ErrDomainNotPermitted) {
		t.Fatalf("expected ErrDomainNotPermitted, got %v", err)
	}
	if n := len(store.Users()); n != 0 {
		t.Fatalf("expected no user, got %d", n)
	}
}

func TestRegisterRequiredKeyDrainedBeforeCommit(t *testing.T) {
	f, store := newStaleKeyFixture(t, mailAuth.KeyRequired, "")

	_, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{
		Email: "a@mail.test", Password: "secret1", RegistrationKey: "ABC",
	})
	if !errors.Is(err, mailAuth.ErrKeyExhausted) {
		t.Fatalf("expected ErrKeyExhausted, got %v", err)
	}
	if n := len(store.Users()); n != 0 {
		t.Fatalf("expected no user, got %d", n)
	}
}

func TestRegisterSingleUseKey(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.setting(func(s *mailAuth.Setting) { s.KeyMode = mailAuth.KeyRequired })
	f.store.PutKey(mailAuth.RegistrationKey{ID: 7, Code: "ONCE", Remaining: 1, RoleID: 2})

	if _, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{
		Email: "a@mail.test", Password: "secret1", RegistrationKey: "ONCE",
	}); err != nil {
		t.Fatalf("first redemption: %v", err)
	}
	_, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{
		Email: "b@mail.test", Password: "secret1", RegistrationKey: "ONCE",
	})
	if !errors.Is(err, mailAuth.ErrKeyExhausted) {
		t.Fatalf("expected ErrKeyExhausted, got %v", err)
	}
	if k, _ := f.store.Key("ONCE"); k.Remaining != 0 {
		t.Fatalf("remaining must never go below zero, got %d", k.Remaining)
	}
}

func TestRegisterKeyExpiresAtEndOfDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	f := newEngineFixture(t, func(_ *mailAuth.Config, b *mailAuth.Builder) {
		b.WithClock(func() time.Time { return now })
	})
	f.setting(func(s *mailAuth.Setting) { s.KeyMode = mailAuth.KeyRequired })
	f.store.PutKey(mailAuth.RegistrationKey{ID: 1, Code: "TODAY", Remaining: 2, RoleID: 2, ExpiresAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)})
	f.store.PutKey(mailAuth.RegistrationKey{ID: 2, Code: "YESTERDAY", Remaining: 2, RoleID: 2, ExpiresAt: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)})

	if _, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{
		Email: "a@mail.test", Password: "secret1", RegistrationKey: "TODAY",
	}); err != nil {
		t.Fatalf("key expiring today must still work: %v", err)
	}
	_, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{
		Email: "b@mail.test", Password: "secret1", RegistrationKey: "YESTERDAY",
	})
	if !errors.Is(err, mailAuth.ErrKeyExpired) {
		t.Fatalf("expected ErrKeyExpired, got %v", err)
	}
}

func TestRegisterDomainPermission(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.store.PutRole(mailAuth.Role{ID: 1, Name: "user", IsDefault: true, AllowedDomains: "other.test"})
	f.store.PutRole(mailAuth.Role{ID: 2, Name: "vip", AllowedDomains: "other.test"})
	f.store.PutKey(mailAuth.RegistrationKey{ID: 1, Code: "VIP", Remaining: 1, RoleID: 2})

	_, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{Email: "a@mail.test", Password: "secret1"})
	if !errors.Is(err, mailAuth.ErrDomainNotPermitted) {
		t.Fatalf("expected ErrDomainNotPermitted, got %v", err)
	}

	f.setting(func(s *mailAuth.Setting) { s.KeyMode = mailAuth.KeyRequired })
	_, err = f.engine.Register(context.Background(), mailAuth.RegisterRequest{Email: "a@mail.test", Password: "secret1", RegistrationKey: "VIP"})
	if !errors.Is(err, mailAuth.ErrDomainNotPermittedByKey) {
		t.Fatalf("expected ErrDomainNotPermittedByKey, got %v", err)
	}
	if errors.Is(err, mailAuth.ErrDomainNotPermitted) {
		t.Fatal("by-key refusal must be distinguishable from the default-role refusal")
	}

	if _, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{Email: "a@other.test", Password: "secret1", RegistrationKey: "VIP"}); err != nil {
		t.Fatalf("permitted domain: %v", err)
	}
}

func TestRegisterOpenVerificationChallengesEveryTime(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.setting(func(s *mailAuth.Setting) { s.Verification = mailAuth.VerifyOpen })

	res, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{
		Email: "a@mail.test", Password: "secret1", VerificationToken: "tok",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if f.verifier.calls != 1 || f.verifier.token != "tok" {
		t.Fatalf("expected one verification with the supplied token, got %d %q", f.verifier.calls, f.verifier.token)
	}
	if !res.NextChallengeRequired {
		t.Fatal("open mode always requires the next challenge")
	}
}

func TestRegisterCountVerification(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.setting(func(s *mailAuth.Setting) {
		s.Verification = mailAuth.VerifyCount
		s.VerificationThreshold = 2
	})

	first := f.register(t, "a@mail.test", "secret1")
	if first.NextChallengeRequired || f.verifier.calls != 0 {
		t.Fatalf("first registration must skip verification: %+v calls=%d", first, f.verifier.calls)
	}

	second := f.register(t, "b@mail.test", "secret1")
	if !second.NextChallengeRequired || f.verifier.calls != 0 {
		t.Fatalf("second registration reaches the threshold: %+v calls=%d", second, f.verifier.calls)
	}

	f.verifier.ok = false
	_, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{Email: "c@mail.test", Password: "secret1"})
	if !errors.Is(err, mailAuth.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}

	f.verifier.ok = true
	third := f.register(t, "c@mail.test", "secret1")
	if f.verifier.calls != 2 {
		t.Fatalf("expected a challenge on both attempts at the threshold, got %d", f.verifier.calls)
	}
	if third.NextChallengeRequired {
		t.Fatal("a passed challenge resets the rolling count")
	}

	f.register(t, "d@mail.test", "secret1")
	if f.verifier.calls != 2 {
		t.Fatalf("registration after reset must skip verification, calls=%d", f.verifier.calls)
	}
}

func TestRegisterCountVerificationFailsClosedWithoutRedis(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.setting(func(s *mailAuth.Setting) {
		s.Verification = mailAuth.VerifyCount
		s.VerificationThreshold = 5
	})
	f.redis.SetError("counter down")

	f.verifier.ok = false
	_, err := f.engine.Register(context.Background(), mailAuth.RegisterRequest{Email: "a@mail.test", Password: "secret1"})
	if !errors.Is(err, mailAuth.ErrVerificationFailed) {
		t.Fatalf("an unreadable counter must require a challenge, got %v", err)
	}
	if f.verifier.calls != 1 {
		t.Fatalf("expected the verifier to be consulted, calls=%d", f.verifier.calls)
	}
}

func TestRegisterThrottle(t *testing.T) {
	f := newEngineFixture(t, func(cfg *mailAuth.Config, _ *mailAuth.Builder) {
		cfg.Registration.EnableIPThrottle = true
		cfg.Registration.MaxAttempts = 2
	})
	ctx := mailAuth.WithClientIP(context.Background(), "10.0.0.9")

	for _, email := range []string{"a@mail.test", "b@mail.test"} {
		if _, err := f.engine.Register(ctx, mailAuth.RegisterRequest{Email: email, Password: "secret1"}); err != nil {
			t.Fatalf("register %s: %v", email, err)
		}
	}
	_, err := f.engine.Register(ctx, mailAuth.RegisterRequest{Email: "c@mail.test", Password: "secret1"})
	if !errors.Is(err, mailAuth.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	ev := f.nextEvent(t, "rate_limit_triggered")
	if ev.Metadata["scope"] != "register" {
		t.Fatalf("unexpected rate limit event %+v", ev)
	}

	other := mailAuth.WithClientIP(context.Background(), "10.0.0.10")
	if _, err := f.engine.Register(other, mailAuth.RegisterRequest{Email: "c@mail.test", Password: "secret1"}); err != nil {
		t.Fatalf("other ip must not be throttled: %v", err)
	}
}
