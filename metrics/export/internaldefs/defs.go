package internaldefs

import (
	authcore "github.com/bindme/authcore"
)

// CounterDef pairs an engine counter with its exported name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef pairs an engine histogram with its exported name.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs is the canonical counter table. Both exporters iterate it
// so the two surfaces can never disagree about names.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricTOTPSuccess, Name: "authcore_totp_success_total", Help: "Successful TOTP verifications."},
	{ID: authcore.MetricTOTPFailure, Name: "authcore_totp_failure_total", Help: "Failed TOTP verifications."},
	{ID: authcore.MetricChannelCodeIssued, Name: "authcore_channel_code_issued_total", Help: "Issued SMS and email codes."},
	{ID: authcore.MetricChannelCodeSuccess, Name: "authcore_channel_code_success_total", Help: "Successful channel-code verifications."},
	{ID: authcore.MetricChannelCodeFailure, Name: "authcore_channel_code_failure_total", Help: "Failed channel-code verifications."},
	{ID: authcore.MetricChannelCodeExpired, Name: "authcore_channel_code_expired_total", Help: "Channel-code attempts against expired codes."},
	{ID: authcore.MetricBackupCodeUsed, Name: "authcore_backup_code_used_total", Help: "Successful backup-code authentications."},
	{ID: authcore.MetricBackupCodeFailed, Name: "authcore_backup_code_failed_total", Help: "Failed backup-code authentications."},
	{ID: authcore.MetricBackupCodesExhausted, Name: "authcore_backup_codes_exhausted_total", Help: "Attempts against fully consumed backup-code sets."},
	{ID: authcore.MetricLockoutTriggered, Name: "authcore_lockout_triggered_total", Help: "Account lockouts triggered."},
	{ID: authcore.MetricLockoutDenied, Name: "authcore_lockout_denied_total", Help: "Attempts denied by an active lockout."},
	{ID: authcore.MetricIPRateDenied, Name: "authcore_ip_rate_denied_total", Help: "Attempts denied by the per-address limiter."},
	{ID: authcore.MetricAttemptThrottled, Name: "authcore_attempt_throttled_total", Help: "Attempts shed by the process-wide throttle."},
	{ID: authcore.MetricFingerprintMismatch, Name: "authcore_fingerprint_mismatch_total", Help: "Session fingerprint mismatches."},
	{ID: authcore.MetricReceiptIssued, Name: "authcore_receipt_issued_total", Help: "Step-up receipts issued."},
	{ID: authcore.MetricCriticalAlert, Name: "authcore_critical_alert_total", Help: "Critical-severity audit events."},
}

// HistogramDefs is the canonical histogram table.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricVerifyLatency, Name: "authcore_verify_latency_seconds", Help: "Verification latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, Prometheus
// "le" label form.
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

// HistogramBoundSuffix mirrors HistogramBounds with characters safe for
// OTel instrument names.
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

// NormalizeBuckets copies a raw snapshot slice into the fixed bucket
// array, zero-filling if the slice is short.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// Prometheus histograms use.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
