package mailAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/mailAuth/internal/audit"
)

const (
	auditEventRegisterSuccess    = "register_success"
	auditEventRegisterFailure    = "register_failure"
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLogout             = "logout"
	auditEventOAuthLoginSuccess  = "oauth_login_success"
	auditEventOAuthLoginFailure  = "oauth_login_failure"
	auditEventOAuthUserCreated   = "oauth_user_created"
	auditEventRateLimitTriggered = "rate_limit_triggered"
	auditEventSessionsRevoked    = "sessions_revoked"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = code
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope, email string) {
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, 0, email, ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

// auditErrorCode reduces err to the stable code recorded with an event.
// Causes are never recorded.
func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ErrInternal.Code
}
