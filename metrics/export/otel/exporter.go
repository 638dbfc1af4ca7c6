package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/mentorbridge/mentorbridge"
	"github.com/mentorbridge/mentorbridge/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter reads on every collection. *mentorbridge.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() mentorbridge.MetricsSnapshot
	AuditDropped() uint64
}

// point is one engine metric bound to an instrument and a fixed attribute set.
type point struct {
	id   mentorbridge.MetricID
	inst metric.Int64Observable
	opt  metric.ObserveOption
}

// latencyPoints holds the bucket observations of one op.
type latencyPoints struct {
	id      mentorbridge.MetricID
	buckets [8]metric.ObserveOption
	count   metric.ObserveOption
}

// OTelExporter publishes engine counters as one observable counter per
// family, labeled the same way as the Prometheus exporter.
type OTelExporter struct {
	source       Source
	registration metric.Registration

	counters     []point
	latency      []latencyPoints
	bucketGauge  metric.Int64ObservableGauge
	countGauge   metric.Int64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers engine instruments on meter.
func NewOTelExporter(meter metric.Meter, engine *mentorbridge.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments reading from source.
func NewOTelExporterFromSource(meter metric.Meter, source Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exp := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, fam := range internaldefs.Families {
		ins, err := meter.Int64ObservableCounter(fam.Name, metric.WithDescription(fam.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", fam.Name, err)
		}
		observables = append(observables, ins)
		for _, s := range fam.Series {
			var attrs attribute.Set
			if fam.Label != "" {
				attrs = attribute.NewSet(attribute.String(fam.Label, s.Value))
			}
			exp.counters = append(exp.counters, point{
				id:   s.ID,
				inst: ins,
				opt:  metric.WithAttributeSet(attrs),
			})
		}
	}

	var err error
	exp.bucketGauge, err = meter.Int64ObservableGauge(
		internaldefs.LatencyName+"_bucket",
		metric.WithDescription(internaldefs.LatencyHelp+" Cumulative count per upper bound."),
	)
	if err != nil {
		return nil, fmt.Errorf("latency buckets: %w", err)
	}
	exp.countGauge, err = meter.Int64ObservableGauge(
		internaldefs.LatencyName+"_count",
		metric.WithDescription(internaldefs.LatencyHelp+" Sample count."),
	)
	if err != nil {
		return nil, fmt.Errorf("latency count: %w", err)
	}
	observables = append(observables, exp.bucketGauge, exp.countGauge)

	for _, op := range internaldefs.Latencies {
		lp := latencyPoints{
			id:    op.ID,
			count: metric.WithAttributeSet(attribute.NewSet(attribute.String("op", op.Value))),
		}
		for i, le := range internaldefs.Bounds {
			lp.buckets[i] = metric.WithAttributeSet(attribute.NewSet(
				attribute.String("op", op.Value),
				attribute.String("le", le),
			))
		}
		exp.latency = append(exp.latency, lp)
	}

	exp.auditDropped, err = meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("audit dropped: %w", err)
	}
	observables = append(observables, exp.auditDropped)

	exp.registration, err = meter.RegisterCallback(exp.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return exp, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	for _, p := range e.counters {
		o.ObserveInt64(p.inst, int64(snap.Counters[p.id]), p.opt)
	}

	// Latency gauges are skipped while histograms are off.
	for _, lp := range e.latency {
		raw, ok := snap.Histograms[lp.id]
		if !ok {
			continue
		}
		cum := internaldefs.Cumulative(raw)
		for i := range cum {
			o.ObserveInt64(e.bucketGauge, int64(cum[i]), lp.buckets[i])
		}
		o.ObserveInt64(e.countGauge, int64(cum[len(cum)-1]), lp.count)
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
