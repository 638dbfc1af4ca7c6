package main

import (
	"context"
	"errors"
	"strings"

	"github.com/mentorbridge/mentorbridge"
	"github.com/mentorbridge/mentorbridge/internal/settings"
	otelexport "github.com/mentorbridge/mentorbridge/metrics/export/otel"
	"github.com/sirupsen/logrus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const meterName = "github.com/mentorbridge/mentorbridge"

var errOTelInterval = errors.New("metrics.otel.interval must be > 0")

// startOTel registers the engine counters on a MeterProvider that logs each
// periodic collection. The returned func flushes a final collection and
// releases the provider.
func startOTel(engine *mentorbridge.Engine, cfg settings.OTelConfig, logger logrus.FieldLogger) (func(context.Context) error, error) {
	if cfg.Interval <= 0 {
		return nil, errOTelInterval
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(
		sdkmetric.NewPeriodicReader(logExporter{logger: logger}, sdkmetric.WithInterval(cfg.Interval)),
	))
	exp, err := otelexport.NewOTelExporter(provider.Meter(meterName), engine)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}

	logger.WithField("interval", cfg.Interval.String()).Info("otel metrics enabled")
	return func(ctx context.Context) error {
		return errors.Join(provider.Shutdown(ctx), exp.Close())
	}, nil
}

// logExporter writes one log entry per collection, one field per series.
type logExporter struct {
	logger logrus.FieldLogger
}

func (logExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (logExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (x logExporter) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	fields := logrus.Fields{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			var points []metricdata.DataPoint[int64]
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				points = data.DataPoints
			case metricdata.Gauge[int64]:
				points = data.DataPoints
			}
			for _, p := range points {
				fields[seriesName(m.Name, p)] = p.Value
			}
		}
	}
	if len(fields) > 0 {
		x.logger.WithFields(fields).Info("metrics collected")
	}
	return nil
}

func (logExporter) ForceFlush(context.Context) error { return nil }

func (logExporter) Shutdown(context.Context) error { return nil }

// seriesName renders name{k=v,...} in attribute order.
func seriesName(name string, p metricdata.DataPoint[int64]) string {
	if p.Attributes.Len() == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, kv := range p.Attributes.ToSlice() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(string(kv.Key))
		b.WriteByte('=')
		b.WriteString(kv.Value.Emit())
	}
	b.WriteByte('}')
	return b.String()
}
