package internaldefs

import (
	"github.com/MrEthical07/mailAuth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   mailAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   mailAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "mailauth_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: mailAuth.MetricRegisterSuccess, Name: "mailauth_register_success_total", Help: "Completed registrations."},
	{ID: mailAuth.MetricRegisterFailure, Name: "mailauth_register_failure_total", Help: "Refused registrations."},
	{ID: mailAuth.MetricRegisterRateLimited, Name: "mailauth_register_rate_limited_total", Help: "Registrations refused by the throttle."},
	{ID: mailAuth.MetricVerificationChallenged, Name: "mailauth_verification_challenged_total", Help: "Registrations that had to pass human verification."},
	{ID: mailAuth.MetricVerificationFailed, Name: "mailauth_verification_failed_total", Help: "Rejected human-verification tokens."},
	{ID: mailAuth.MetricKeyRedeemed, Name: "mailauth_key_redeemed_total", Help: "Registration keys consumed."},
	{ID: mailAuth.MetricLoginSuccess, Name: "mailauth_login_success_total", Help: "Successful password logins."},
	{ID: mailAuth.MetricLoginFailure, Name: "mailauth_login_failure_total", Help: "Failed password logins."},
	{ID: mailAuth.MetricLoginRateLimited, Name: "mailauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: mailAuth.MetricPasswordRehashed, Name: "mailauth_password_rehashed_total", Help: "Password hashes upgraded at login."},
	{ID: mailAuth.MetricOAuthLoginSuccess, Name: "mailauth_oauth_login_success_total", Help: "Successful federated logins."},
	{ID: mailAuth.MetricOAuthLoginFailure, Name: "mailauth_oauth_login_failure_total", Help: "Failed federated logins."},
	{ID: mailAuth.MetricOAuthUserCreated, Name: "mailauth_oauth_user_created_total", Help: "Users provisioned from a federated profile."},
	{ID: mailAuth.MetricUpstreamFailure, Name: "mailauth_upstream_failure_total", Help: "OAuth token exchange and profile fetch failures."},
	{ID: mailAuth.MetricSessionCreated, Name: "mailauth_session_created_total", Help: "Session tokens issued."},
	{ID: mailAuth.MetricSessionInvalidated, Name: "mailauth_session_invalidated_total", Help: "Session tokens removed by logout."},
	{ID: mailAuth.MetricLogout, Name: "mailauth_logout_total", Help: "Logout operations."},
	{ID: mailAuth.MetricAuthenticateFailure, Name: "mailauth_authenticate_failure_total", Help: "Credentials rejected by Authenticate."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: mailAuth.MetricAuthenticateLatency, Name: "mailauth_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one more bucket for everything above the last bound.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// flatten buckets into separate instruments.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
