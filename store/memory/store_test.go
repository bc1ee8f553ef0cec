package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/mailAuth"
)

func TestCreateUserDecrementsKeyAndCreatesAccount(t *testing.T) {
	s := New()
	s.PutKey(mailAuth.RegistrationKey{ID: 1, Code: "ABC", Remaining: 3, RoleID: 2})
	ctx := context.Background()

	u, err := s.CreateUser(ctx, mailAuth.NewUser{Email: "a@mail.test", RoleID: 2, RegKeyID: 1, AccountName: "a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID != 1 || u.RoleID != 2 {
		t.Fatalf("unexpected user %+v", u)
	}
	if k, _ := s.Key("ABC"); k.Remaining != 2 {
		t.Fatalf("expected remaining 2, got %d", k.Remaining)
	}
	acct, err := s.AccountByEmail(ctx, "a@mail.test")
	if err != nil || acct.UserID != u.ID || acct.Name != "a" {
		t.Fatalf("account not created: %+v %v", acct, err)
	}
}

func TestCreateUserExhaustedKeyWritesNothing(t *testing.T) {
	s := New()
	s.PutKey(mailAuth.RegistrationKey{ID: 1, Code: "ONE", Remaining: 0, RoleID: 2})

	_, err := s.CreateUser(context.Background(), mailAuth.NewUser{Email: "a@mail.test", RegKeyID: 1})
	if !errors.Is(err, mailAuth.ErrKeyNotRedeemable) {
		t.Fatalf("expected ErrKeyNotRedeemable, got %v", err)
	}
	if len(s.Users()) != 0 || len(s.Accounts()) != 0 {
		t.Fatal("failed create must not leave rows behind")
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.CreateUser(ctx, mailAuth.NewUser{Email: "a@mail.test", ExternalID: "42"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateUser(ctx, mailAuth.NewUser{Email: "a@mail.test"}); !errors.Is(err, mailAuth.ErrDuplicate) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	if _, err := s.CreateUser(ctx, mailAuth.NewUser{Email: "b@mail.test", ExternalID: "42"}); !errors.Is(err, mailAuth.ErrDuplicate) {
		t.Fatalf("expected duplicate external id, got %v", err)
	}
}

func TestConcurrentRedemptionOfSingleUseKey(t *testing.T) {
	s := New()
	s.PutKey(mailAuth.RegistrationKey{ID: 1, Code: "ONCE", Remaining: 1, RoleID: 2})
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateUser(ctx, mailAuth.NewUser{Email: string(rune('a'+i)) + "@mail.test", RegKeyID: 1})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, mailAuth.ErrKeyNotRedeemable):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one redemption, got %d", ok)
	}
	if k, _ := s.Key("ONCE"); k.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", k.Remaining)
	}
}

func TestLookupsReturnNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.UserByEmail(ctx, "x@mail.test"); !errors.Is(err, mailAuth.ErrNotFound) {
		t.Fatalf("UserByEmail: %v", err)
	}
	if _, err := s.UserByExternalID(ctx, "1"); !errors.Is(err, mailAuth.ErrNotFound) {
		t.Fatalf("UserByExternalID: %v", err)
	}
	if _, err := s.RoleByID(ctx, 1); !errors.Is(err, mailAuth.ErrNotFound) {
		t.Fatalf("RoleByID: %v", err)
	}
	if _, err := s.DefaultRole(ctx); !errors.Is(err, mailAuth.ErrNotFound) {
		t.Fatalf("DefaultRole: %v", err)
	}
	if _, err := s.RegistrationKeyByCode(ctx, "nope"); !errors.Is(err, mailAuth.ErrNotFound) {
		t.Fatalf("RegistrationKeyByCode: %v", err)
	}
}

func TestTouchAndTrustLevel(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := s.PutUser(mailAuth.User{Email: "a@mail.test", ExternalID: "9", ExternalTrustLevel: 1})

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.TouchUser(ctx, u.ID, mailAuth.Activity{IP: "10.0.0.1", At: at}); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := s.UpdateExternalTrustLevel(ctx, u.ID, 3); err != nil {
		t.Fatalf("trust level: %v", err)
	}
	got, err := s.UserByExternalID(ctx, "9")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ExternalTrustLevel != 3 || !got.LastActiveAt.Equal(at) {
		t.Fatalf("unexpected user %+v", got)
	}
	if a, ok := s.LastActivity(u.ID); !ok || a.IP != "10.0.0.1" {
		t.Fatalf("unexpected activity %+v", a)
	}
}
