package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/mailAuth"
)

type fakeAuth struct {
	session mailAuth.Session
	err     error
	got     string
}

func (f *fakeAuth) Authenticate(_ context.Context, credential string) (mailAuth.Session, error) {
	f.got = credential
	return f.session, f.err
}

func TestGuardInjectsSession(t *testing.T) {
	auth := &fakeAuth{session: mailAuth.Session{UserID: 7, Token: "tok"}}
	var seen mailAuth.Session
	h := Guard(auth, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = mailAuth.SessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/logout", nil)
	req.Header.Set("Authorization", "Bearer cred-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if auth.got != "cred-1" || seen.UserID != 7 || seen.Token != "tok" {
		t.Fatalf("unexpected session %+v (credential %q)", seen, auth.got)
	}
}

func TestGuardRejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
		err    error
	}{
		{"missing header", "", nil},
		{"wrong scheme", "Basic abc", nil},
		{"empty bearer", "Bearer   ", nil},
		{"authenticate fails", "Bearer cred", mailAuth.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuth{err: tt.err}
			var denied error
			h := Guard(auth, func(w http.ResponseWriter, _ *http.Request, err error) {
				denied = err
				w.WriteHeader(http.StatusUnauthorized)
			})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler must not run")
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if !errors.Is(denied, mailAuth.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", denied)
			}
		})
	}
}
