package internaldefs

import (
	"github.com/slatekit/slateauth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   slateauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   slateauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for dropped audit events.
const (
	AuditDroppedName = "slateauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: slateauth.MetricSignUpSuccess, Name: "slateauth_sign_up_success_total", Help: "Accounts created."},
	{ID: slateauth.MetricSignUpDuplicate, Name: "slateauth_sign_up_duplicate_total", Help: "Sign-ups rejected because the username or nickname was taken."},
	{ID: slateauth.MetricSignUpInvalid, Name: "slateauth_sign_up_invalid_total", Help: "Sign-ups rejected for invalid input."},
	{ID: slateauth.MetricSignInSuccess, Name: "slateauth_sign_in_success_total", Help: "Successful sign-ins."},
	{ID: slateauth.MetricSignInNoAccount, Name: "slateauth_sign_in_no_account_total", Help: "Sign-ins for unknown usernames."},
	{ID: slateauth.MetricSignInWrongPassword, Name: "slateauth_sign_in_wrong_password_total", Help: "Sign-ins with a wrong password."},
	{ID: slateauth.MetricSignOut, Name: "slateauth_sign_out_total", Help: "Sign-outs."},
	{ID: slateauth.MetricUserRemoved, Name: "slateauth_user_removed_total", Help: "Accounts removed."},
	{ID: slateauth.MetricTokenIssued, Name: "slateauth_token_issued_total", Help: "User tokens issued."},
	{ID: slateauth.MetricTokenRejected, Name: "slateauth_token_rejected_total", Help: "User tokens that failed verification."},
	{ID: slateauth.MetricPasswordChangeSuccess, Name: "slateauth_password_change_success_total", Help: "Successful password changes."},
	{ID: slateauth.MetricPasswordChangeInvalidOld, Name: "slateauth_password_change_invalid_old_total", Help: "Password changes rejected for a wrong current password."},
	{ID: slateauth.MetricPasswordSet, Name: "slateauth_password_set_total", Help: "Password overrides."},
	{ID: slateauth.MetricFlagsUpdated, Name: "slateauth_flags_updated_total", Help: "Flag updates."},
	{ID: slateauth.MetricNicknameUpdated, Name: "slateauth_nickname_updated_total", Help: "Nickname changes."},
	{ID: slateauth.MetricUserDataUpdated, Name: "slateauth_user_data_updated_total", Help: "User data updates."},
	{ID: slateauth.MetricGateAllowed, Name: "slateauth_gate_allowed_total", Help: "Gate checks that passed."},
	{ID: slateauth.MetricGateUnauthorized, Name: "slateauth_gate_unauthorized_total", Help: "Gate checks without a session."},
	{ID: slateauth.MetricGateForbidden, Name: "slateauth_gate_forbidden_total", Help: "Gate checks missing a required flag."},
	{ID: slateauth.MetricStoreDegraded, Name: "slateauth_store_degraded_total", Help: "Store operations served in degraded mode."},
	{ID: slateauth.MetricSignInRateLimited, Name: "slateauth_sign_in_rate_limited_total", Help: "Sign-ins refused by the throttle."},
	{ID: slateauth.MetricThrottleUnavailable, Name: "slateauth_throttle_unavailable_total", Help: "Throttle checks skipped because Redis was unreachable."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: slateauth.MetricSignInLatency, Name: "slateauth_sign_in_latency_seconds", Help: "Sign-in latency."},
}

// HistogramBounds are the upper bounds of the engine's latency buckets.
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

// HistogramBoundSuffix gives each bound a metric-name-safe spelling.
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

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
