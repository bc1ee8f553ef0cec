package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/mailAuth"
)

// Authenticator resolves a session credential. *mailAuth.Engine satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (mailAuth.Session, error)
}

// Guard rejects requests without a valid, still-listed session credential
// and attaches the resolved session with mailAuth.WithSession.
//
// The credential is read from "Authorization: Bearer <credential>". onDeny
// writes the rejection; nil writes a plain 401.
func Guard(auth Authenticator, onDeny func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	if onDeny == nil {
		onDeny = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				onDeny(w, r, mailAuth.ErrUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				onDeny(w, r, mailAuth.ErrUnauthorized)
				return
			}

			s, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				onDeny(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(mailAuth.WithSession(r.Context(), s)))
		})
	}
}

// ClientInfo attaches the caller's address and User-Agent to the request
// context for throttling, verification and activity bookkeeping. The address
// comes from RemoteAddr, which a real-IP middleware may have rewritten from
// trusted proxy headers.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx := mailAuth.WithClientIP(r.Context(), ip)
		ctx = mailAuth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
