package internaldefs

import (
	"github.com/MrEthical07/sessionauth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   sessionauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   sessionauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: sessionauth.MetricRegisterSuccess, Name: "sessionauth_register_success_total", Help: "Completed registrations."},
	{ID: sessionauth.MetricRegisterDuplicate, Name: "sessionauth_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: sessionauth.MetricRegisterFailure, Name: "sessionauth_register_failure_total", Help: "Registrations that failed after validation."},
	{ID: sessionauth.MetricLoginSuccess, Name: "sessionauth_login_success_total", Help: "Successful logins."},
	{ID: sessionauth.MetricLoginFailure, Name: "sessionauth_login_failure_total", Help: "Rejected logins."},
	{ID: sessionauth.MetricLogout, Name: "sessionauth_logout_total", Help: "Logout calls."},
	{ID: sessionauth.MetricRefreshSuccess, Name: "sessionauth_refresh_success_total", Help: "Successful refresh calls."},
	{ID: sessionauth.MetricRefreshRotated, Name: "sessionauth_refresh_rotated_total", Help: "Refresh calls that extended the session and rotated the refresh token."},
	{ID: sessionauth.MetricRefreshFailure, Name: "sessionauth_refresh_failure_total", Help: "Rejected refresh calls."},
	{ID: sessionauth.MetricEmailVerificationRequest, Name: "sessionauth_email_verification_request_total", Help: "Email verification codes issued."},
	{ID: sessionauth.MetricEmailVerificationSuccess, Name: "sessionauth_email_verification_success_total", Help: "Completed email verifications."},
	{ID: sessionauth.MetricEmailVerificationFailure, Name: "sessionauth_email_verification_failure_total", Help: "Rejected email verifications."},
	{ID: sessionauth.MetricPasswordResetRequest, Name: "sessionauth_password_reset_request_total", Help: "Password reset codes issued."},
	{ID: sessionauth.MetricPasswordResetConfirmSuccess, Name: "sessionauth_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: sessionauth.MetricPasswordResetConfirmFailure, Name: "sessionauth_password_reset_confirm_failure_total", Help: "Rejected password resets."},
	{ID: sessionauth.MetricRateLimitHit, Name: "sessionauth_rate_limit_hit_total", Help: "Code issuance blocked by the counting rule."},
	{ID: sessionauth.MetricEmailSendFailure, Name: "sessionauth_email_send_failure_total", Help: "Outbound email failures."},
	{ID: sessionauth.MetricSessionCreated, Name: "sessionauth_session_created_total", Help: "Sessions created."},
	{ID: sessionauth.MetricSessionRevoked, Name: "sessionauth_session_revoked_total", Help: "Sessions removed by logout or explicit revoke."},
	{ID: sessionauth.MetricSessionInvalidated, Name: "sessionauth_session_invalidated_total", Help: "Bulk session removals after a password reset."},
	{ID: sessionauth.MetricAuthenticateSuccess, Name: "sessionauth_authenticate_success_total", Help: "Accepted access tokens."},
	{ID: sessionauth.MetricAuthenticateFailure, Name: "sessionauth_authenticate_failure_total", Help: "Rejected access tokens."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: sessionauth.MetricAuthenticateLatency, Name: "sessionauth_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// AuditDroppedName and AuditDroppedHelp describe the dispatcher drop counter.
const (
	AuditDroppedName = "sessionauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// BucketCount is the number of histogram buckets, including +Inf.
const BucketCount = 8

// UpperBounds are the finite bucket upper bounds in seconds. The last engine bucket
// is +Inf and has no entry here.
var UpperBounds = [BucketCount - 1]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BoundSuffix names each bucket, including +Inf, for exporters without native
// histogram support.
var BoundSuffix = [BucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
