package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("causalgrid.graph")
	meter  = otel.Meter("causalgrid.graph")
)

var (
	writeLatency metric.Float64Histogram
	writeTotal   metric.Int64Counter
	edgeCount    metric.Int64Gauge

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		writeLatency, err = meter.Float64Histogram(
			"graph_write_duration_seconds",
			metric.WithDescription("Duration of graph write transactions"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		writeTotal, err = meter.Int64Counter(
			"graph_write_total",
			metric.WithDescription("Total number of graph write transactions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgeCount, err = meter.Int64Gauge(
			"graph_resolved_edges",
			metric.WithDescription("Resolved active edges in the published snapshot"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordWriteMetrics(ctx context.Context, duration time.Duration, published *Snapshot, err error) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	writeLatency.Record(ctx, duration.Seconds(), attrs)
	writeTotal.Add(ctx, 1, attrs)
	if published != nil {
		edgeCount.Record(ctx, int64(len(published.edges)))
	}
}
