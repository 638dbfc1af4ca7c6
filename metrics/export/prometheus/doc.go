// Package prometheus renders MentorBridge engine metrics in Prometheus text
// exposition format.
//
// Counters are grouped into labeled families such as
// mentorbridge_booking_transition_total{to="confirmed"}; latency is one
// histogram, mentorbridge_operation_latency_seconds, split by op.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
