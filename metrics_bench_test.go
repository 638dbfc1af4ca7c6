package mentorbridge

import (
	"testing"
	"time"
)

// bookingDayMix approximates the counter traffic of a busy booking day:
// mostly token checks, then booking transitions and chat.
var bookingDayMix = [...]MetricID{
	MetricValidateSuccess,
	MetricValidateSuccess,
	MetricValidateSuccess,
	MetricValidateFailure,
	MetricBookingCreated,
	MetricBookingConfirmed,
	MetricBookingCompleted,
	MetricBookingCancelled,
	MetricBookingConflict,
	MetricMessageSent,
	MetricMessageSent,
	MetricFeedbackSubmitted,
}

func BenchmarkMetricsBookingDayMix(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			m.Inc(bookingDayMix[i%len(bookingDayMix)])
			i++
		}
	})
}

func BenchmarkMetricsDisabledIsFree(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(bookingDayMix[i%len(bookingDayMix)])
		m.Observe(MetricTransitionLatency, time.Millisecond)
	}
}

func BenchmarkTransitionLatencyObserve(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	// Spread across the histogram rather than hitting one bucket.
	samples := [...]time.Duration{
		300 * time.Microsecond,
		2 * time.Millisecond,
		8 * time.Millisecond,
		40 * time.Millisecond,
		250 * time.Millisecond,
		2 * time.Second,
	}
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			m.Observe(MetricTransitionLatency, samples[i%len(samples)])
			i++
		}
	})
}

func BenchmarkMetricsSnapshot(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	for _, id := range bookingDayMix {
		m.Inc(id)
	}
	m.Observe(MetricValidateLatency, time.Millisecond)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = m.Snapshot()
	}
}
