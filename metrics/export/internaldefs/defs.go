package internaldefs

import (
	almagestAuth "github.com/almagest-io/almagestAuth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   almagestAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   almagestAuth.MetricID
	Name string
	Help string
}

// EventsDroppedName is the counter for auth events dropped by the dispatcher.
const EventsDroppedName = "almagest_auth_events_dropped_total"

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: almagestAuth.MetricLoginAttempt, Name: "almagest_login_attempt_total", Help: "Password login attempts."},
	{ID: almagestAuth.MetricLoginSuccess, Name: "almagest_login_success_total", Help: "Logins completed with a verified code."},
	{ID: almagestAuth.MetricAuthFailure, Name: "almagest_auth_failure_total", Help: "Counted wrong password or wrong code attempts."},
	{ID: almagestAuth.MetricLockout, Name: "almagest_lockout_total", Help: "Identities that reached the failure limit."},
	{ID: almagestAuth.MetricLockedRejected, Name: "almagest_locked_rejected_total", Help: "Requests refused for a locked identity."},
	{ID: almagestAuth.MetricBannedRejected, Name: "almagest_banned_rejected_total", Help: "Requests refused for a banned member."},
	{ID: almagestAuth.MetricChallengeIssued, Name: "almagest_challenge_issued_total", Help: "One-time code challenges issued."},
	{ID: almagestAuth.MetricChallengeVerified, Name: "almagest_challenge_verified_total", Help: "One-time codes accepted."},
	{ID: almagestAuth.MetricChallengeRejected, Name: "almagest_challenge_rejected_total", Help: "One-time codes refused as missing, expired or used."},
	{ID: almagestAuth.MetricAccessIssued, Name: "almagest_access_issued_total", Help: "Access tokens issued."},
	{ID: almagestAuth.MetricRefreshIssued, Name: "almagest_refresh_issued_total", Help: "Refresh tokens issued."},
	{ID: almagestAuth.MetricRefreshValid, Name: "almagest_refresh_valid_total", Help: "Refresh tokens accepted."},
	{ID: almagestAuth.MetricRefreshInvalid, Name: "almagest_refresh_invalid_total", Help: "Refresh tokens rejected."},
	{ID: almagestAuth.MetricAccessRenewed, Name: "almagest_access_renewed_total", Help: "Access tokens renewed from a refresh token."},
	{ID: almagestAuth.MetricInvalidToken, Name: "almagest_invalid_token_total", Help: "Requests refused for invalid credentials."},
	{ID: almagestAuth.MetricNotificationSent, Name: "almagest_notification_sent_total", Help: "Push and mail notifications delivered."},
	{ID: almagestAuth.MetricNotificationFailed, Name: "almagest_notification_failed_total", Help: "Push and mail notifications that failed."},
	{ID: almagestAuth.MetricNotificationDropped, Name: "almagest_notification_dropped_total", Help: "Push notifications dropped on a full queue."},
	{ID: almagestAuth.MetricPasswordReset, Name: "almagest_password_reset_total", Help: "Temporary passwords issued."},
	{ID: almagestAuth.MetricPasswordChanged, Name: "almagest_password_changed_total", Help: "Passwords changed by members."},
	{ID: almagestAuth.MetricMemberRegistered, Name: "almagest_member_registered_total", Help: "Members registered."},
	{ID: almagestAuth.MetricMemberLeft, Name: "almagest_member_left_total", Help: "Members that closed their membership."},
	{ID: almagestAuth.MetricLogout, Name: "almagest_logout_total", Help: "Logouts."},
	{ID: almagestAuth.MetricRateLimited, Name: "almagest_rate_limited_total", Help: "Send requests refused by a throttle."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: almagestAuth.MetricAuthenticateLatency, Name: "almagest_authenticate_latency_seconds", Help: "Request authentication latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names the same bounds for instrument names.
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

// NormalizeBuckets copies raw into a fixed eight-bucket array.
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
