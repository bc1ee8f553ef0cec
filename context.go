package mailAuth

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type sessionContextKey struct{}

// Session identifies the authenticated caller of a request: the user and
// the raw session token its credential carries.
type Session struct {
	UserID int64
	Token  string
}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for registration and login throttling, human verification, audit events
// and last-activity bookkeeping.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. It is recorded
// with the user's last activity.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithSession attaches an authenticated session to ctx. The route guard
// sets it after Authenticate; Logout reads the token to remove from it.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext returns the session attached by WithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}

	s, ok := ctx.Value(sessionContextKey{}).(Session)
	if !ok || s.UserID <= 0 || s.Token == "" {
		return Session{}, false
	}
	return s, true
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}
