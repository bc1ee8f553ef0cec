package mailAuth

import (
	"errors"
	"net/http"
)

// ErrorCategory groups business errors by how a caller should react to them.
type ErrorCategory uint8

const (
	// CategoryConfig marks missing or invalid service configuration.
	CategoryConfig ErrorCategory = iota + 1
	// CategoryInput marks malformed or missing request fields.
	CategoryInput
	// CategoryPolicy marks requests refused by registration policy.
	CategoryPolicy
	// CategoryVerification marks a failed human-verification challenge.
	CategoryVerification
	// CategoryUpstream marks failures of the external identity provider.
	CategoryUpstream
	// CategoryState marks refusals caused by stored account state.
	CategoryState
	// CategoryInternal marks backend failures (storage, Redis, signing).
	CategoryInternal
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryConfig:
		return "config"
	case CategoryInput:
		return "input"
	case CategoryPolicy:
		return "policy"
	case CategoryVerification:
		return "verification"
	case CategoryUpstream:
		return "upstream"
	case CategoryState:
		return "state"
	case CategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a typed business error.
//
// Code identifies the failure kind and is what errors.Is compares. Key is
// the message key used to render a localized message for the caller. The
// wrapped cause, if any, is for logs only and is never shown to callers.
type Error struct {
	Code     string
	Key      string
	Category ErrorCategory
	Status   int
	cause    error
}

func (e *Error) Error() string {
	return e.Code
}

// Unwrap returns the internal cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// withCause returns a copy of e that wraps cause.
func (e *Error) withCause(cause error) *Error {
	out := *e
	out.cause = cause
	return &out
}

func newError(code, key string, category ErrorCategory, status int) *Error {
	return &Error{Code: code, Key: key, Category: category, Status: status}
}

var (
	// ErrRegistrationDisabled is returned when registration mode is closed.
	ErrRegistrationDisabled = newError("registration_disabled", "regDisabled", CategoryPolicy, http.StatusForbidden)
	// ErrCapacityExceeded is returned when the maximum user count is reached.
	ErrCapacityExceeded = newError("capacity_exceeded", "maxUsersReached", CategoryPolicy, http.StatusForbidden)
	// ErrMissingKey is returned when a registration key is required but absent.
	ErrMissingKey = newError("missing_key", "emptyRegKey", CategoryPolicy, http.StatusBadRequest)
	// ErrInvalidKey is returned when the registration key does not exist.
	ErrInvalidKey = newError("invalid_key", "notExistRegKey", CategoryPolicy, http.StatusBadRequest)
	// ErrKeyExhausted is returned when the registration key has no uses left.
	ErrKeyExhausted = newError("key_exhausted", "noRegKeyCount", CategoryPolicy, http.StatusBadRequest)
	// ErrKeyExpired is returned when the registration key expiry day has passed.
	ErrKeyExpired = newError("key_expired", "regKeyExpire", CategoryPolicy, http.StatusBadRequest)
	// ErrDomainNotPermittedByKey is returned when the role granted by a key
	// does not allow the email domain.
	ErrDomainNotPermittedByKey = newError("domain_not_permitted_by_key", "noDomainPermRegKey", CategoryPolicy, http.StatusForbidden)
	// ErrDomainNotPermitted is returned when the default role does not allow
	// the email domain.
	ErrDomainNotPermitted = newError("domain_not_permitted", "noDomainPermReg", CategoryPolicy, http.StatusForbidden)
	// ErrTrustLevelTooLow is returned when a federated profile is below the
	// configured minimum trust level.
	ErrTrustLevelTooLow = newError("trust_level_too_low", "trustLevelNotEnough", CategoryPolicy, http.StatusForbidden)
	// ErrRateLimited is returned when a throttle window is exhausted.
	ErrRateLimited = newError("rate_limited", "rateLimited", CategoryPolicy, http.StatusTooManyRequests)

	// ErrNotEmailFormat is returned for a syntactically invalid email.
	ErrNotEmailFormat = newError("not_email_format", "notEmail", CategoryInput, http.StatusBadRequest)
	// ErrPasswordTooLong is returned for passwords longer than 30 characters.
	ErrPasswordTooLong = newError("password_too_long", "pwdLengthLimit", CategoryInput, http.StatusBadRequest)
	// ErrEmailNameTooLong is returned when the local part exceeds 30 characters.
	ErrEmailNameTooLong = newError("email_name_too_long", "emailLengthLimit", CategoryInput, http.StatusBadRequest)
	// ErrPasswordTooShort is returned for passwords shorter than 6 characters.
	ErrPasswordTooShort = newError("password_too_short", "pwdMinLengthLimit", CategoryInput, http.StatusBadRequest)
	// ErrEmailDomainInvalid is returned when the email domain is not served.
	ErrEmailDomainInvalid = newError("email_domain_invalid", "notEmailDomain", CategoryInput, http.StatusBadRequest)
	// ErrCredentialsMissing is returned when login receives an empty email or
	// password.
	ErrCredentialsMissing = newError("credentials_missing", "emailAndPwdEmpty", CategoryInput, http.StatusBadRequest)
	// ErrAuthCodeMissing is returned when the federated callback has no code.
	ErrAuthCodeMissing = newError("auth_code_missing", "authCodeEmpty", CategoryInput, http.StatusBadRequest)

	// ErrVerificationFailed is returned when the human-verification token is
	// rejected.
	ErrVerificationFailed = newError("verification_failed", "botVerifyFail", CategoryVerification, http.StatusBadRequest)

	// ErrProviderConfigMissing is returned when OAuth client settings are absent.
	ErrProviderConfigMissing = newError("provider_config_missing", "oauthConfigError", CategoryConfig, http.StatusInternalServerError)
	// ErrNoDomainConfigured is returned when no mail domain is configured.
	ErrNoDomainConfigured = newError("no_domain_configured", "noDomainVariable", CategoryConfig, http.StatusInternalServerError)

	// ErrTokenExchangeFailed is returned when the code-for-token call fails.
	ErrTokenExchangeFailed = newError("token_exchange_failed", "getAccessTokenFailed", CategoryUpstream, http.StatusBadGateway)
	// ErrProfileFetchFailed is returned when the profile call fails.
	ErrProfileFetchFailed = newError("profile_fetch_failed", "getUserInfoFailed", CategoryUpstream, http.StatusBadGateway)

	// ErrAccountAlreadyExists is returned when an active account owns the email.
	ErrAccountAlreadyExists = newError("account_already_exists", "isRegAccount", CategoryState, http.StatusConflict)
	// ErrAccountSoftDeleted is returned when registering over a soft-deleted
	// account.
	ErrAccountSoftDeleted = newError("account_soft_deleted", "isDelUser", CategoryState, http.StatusConflict)
	// ErrNoSuchUser is returned when login finds no user for the email.
	ErrNoSuchUser = newError("no_such_user", "notExistUser", CategoryState, http.StatusUnauthorized)
	// ErrAccountDeleted is returned when logging into a soft-deleted user.
	ErrAccountDeleted = newError("account_deleted", "isDelUser", CategoryState, http.StatusForbidden)
	// ErrAccountBanned is returned when logging into a banned user.
	ErrAccountBanned = newError("account_banned", "isBanUser", CategoryState, http.StatusForbidden)
	// ErrIncorrectPassword is returned when the password does not match.
	ErrIncorrectPassword = newError("incorrect_password", "IncorrectPwd", CategoryState, http.StatusUnauthorized)
	// ErrExternalProfileInvalid is returned when a federated profile lacks an
	// id or username.
	ErrExternalProfileInvalid = newError("external_profile_invalid", "oauthUserInfoError", CategoryState, http.StatusBadRequest)
	// ErrEmailAlreadyExists is returned when the synthesized federated email
	// collides with an existing account.
	ErrEmailAlreadyExists = newError("email_already_exists", "emailAlreadyExists", CategoryState, http.StatusConflict)
	// ErrUnauthorized is returned when a session credential is invalid, expired
	// or no longer listed for its user.
	ErrUnauthorized = newError("unauthorized", "unauthorized", CategoryState, http.StatusUnauthorized)

	// ErrSessionCreationFailed is returned when the session entry cannot be written.
	ErrSessionCreationFailed = newError("session_creation_failed", "internalError", CategoryInternal, http.StatusInternalServerError)
	// ErrSessionInvalidationFailed is returned when a token cannot be removed.
	ErrSessionInvalidationFailed = newError("session_invalidation_failed", "internalError", CategoryInternal, http.StatusInternalServerError)
	// ErrIdentityStoreUnavailable is returned when the identity store fails.
	ErrIdentityStoreUnavailable = newError("identity_store_unavailable", "internalError", CategoryInternal, http.StatusInternalServerError)
	// ErrInternal is returned for any other backend failure.
	ErrInternal = newError("internal", "internalError", CategoryInternal, http.StatusInternalServerError)
)

// Errors an IdentityStore implementation reports. The engine translates
// them into business errors.
var (
	// ErrNotFound is returned by lookups that match no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique email or external id is taken.
	ErrDuplicate = errors.New("duplicate record")
	// ErrKeyNotRedeemable is returned by CreateUser when the registration key
	// has no remaining uses at commit time.
	ErrKeyNotRedeemable = errors.New("registration key not redeemable")
)

// AsError extracts the business error from err. Anything that is not a
// business error is reported as ErrInternal with err as its cause.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return ErrInternal.withCause(err)
}
