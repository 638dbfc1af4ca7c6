package internaldefs

import (
	"github.com/mentorbridge/mentorbridge"
)

// Series is one labeled point of a [Family].
type Series struct {
	ID    mentorbridge.MetricID
	Value string
}

// Family groups engine counters that differ only by one label. A family with
// an empty Label has exactly one series and is exposed unlabeled.
type Family struct {
	Name   string
	Help   string
	Label  string
	Series []Series
}

// Families lists every exported counter family in exposition order.
var Families = []Family{
	{
		Name:  "mentorbridge_login_total",
		Help:  "Login attempts by outcome.",
		Label: "outcome",
		Series: []Series{
			{ID: mentorbridge.MetricLoginSuccess, Value: "success"},
			{ID: mentorbridge.MetricLoginFailure, Value: "failure"},
			{ID: mentorbridge.MetricLoginRateLimited, Value: "rate_limited"},
		},
	},
	{
		Name:  "mentorbridge_register_total",
		Help:  "Registrations by outcome.",
		Label: "outcome",
		Series: []Series{
			{ID: mentorbridge.MetricRegisterSuccess, Value: "success"},
			{ID: mentorbridge.MetricRegisterDuplicate, Value: "duplicate"},
			{ID: mentorbridge.MetricRegisterRateLimited, Value: "rate_limited"},
		},
	},
	{
		Name:  "mentorbridge_token_validation_total",
		Help:  "Bearer tokens checked, by outcome.",
		Label: "outcome",
		Series: []Series{
			{ID: mentorbridge.MetricValidateSuccess, Value: "accepted"},
			{ID: mentorbridge.MetricValidateFailure, Value: "rejected"},
		},
	},
	{
		Name:   "mentorbridge_access_denied_total",
		Help:   "Authenticated requests denied by role.",
		Series: []Series{{ID: mentorbridge.MetricAuthorizeDenied}},
	},
	{
		Name:  "mentorbridge_account_event_total",
		Help:  "Account maintenance events.",
		Label: "event",
		Series: []Series{
			{ID: mentorbridge.MetricRevokeAll, Value: "revoke_all"},
			{ID: mentorbridge.MetricPasswordRehashed, Value: "password_rehashed"},
			{ID: mentorbridge.MetricProfileUpdated, Value: "profile_updated"},
		},
	},
	{
		Name:   "mentorbridge_booking_created_total",
		Help:   "Bookings created in pending state.",
		Series: []Series{{ID: mentorbridge.MetricBookingCreated}},
	},
	{
		Name:  "mentorbridge_booking_transition_total",
		Help:  "Booking transitions applied, by target status.",
		Label: "to",
		Series: []Series{
			{ID: mentorbridge.MetricBookingConfirmed, Value: "confirmed"},
			{ID: mentorbridge.MetricBookingCompleted, Value: "completed"},
			{ID: mentorbridge.MetricBookingCancelled, Value: "cancelled"},
		},
	},
	{
		Name:  "mentorbridge_booking_rejected_total",
		Help:  "Booking requests refused, by reason.",
		Label: "reason",
		Series: []Series{
			{ID: mentorbridge.MetricBookingDenied, Value: "forbidden"},
			{ID: mentorbridge.MetricBookingConflict, Value: "conflict"},
		},
	},
	{
		Name:  "mentorbridge_record_total",
		Help:  "Messages and feedback entries stored.",
		Label: "kind",
		Series: []Series{
			{ID: mentorbridge.MetricMessageSent, Value: "message"},
			{ID: mentorbridge.MetricFeedbackSubmitted, Value: "feedback"},
		},
	},
}

// LatencyName is the one histogram family; its op label selects the operation.
const LatencyName = "mentorbridge_operation_latency_seconds"

// LatencyHelp describes [LatencyName].
const LatencyHelp = "Engine operation latency."

// Latencies maps each histogram-backed metric to its op label.
var Latencies = []Series{
	{ID: mentorbridge.MetricValidateLatency, Value: "validate"},
	{ID: mentorbridge.MetricTransitionLatency, Value: "transition"},
}

// AuditDroppedName counts audit events lost to a full dispatcher buffer.
const AuditDroppedName = "mentorbridge_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Audit events dropped on a full dispatcher buffer."

// Bounds are the upper bounds of the eight engine buckets, in seconds.
var Bounds = [8]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// Cumulative folds per-bucket counts into cumulative counts. Short input is
// zero-padded; extra buckets land in +Inf.
func Cumulative(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, n := range raw {
		running += n
		if i < len(out) {
			out[i] = running
		}
	}
	for i := len(raw); i < len(out); i++ {
		out[i] = running
	}
	out[len(out)-1] = running
	return out
}
