package propagation

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("causalgrid.propagation")
	meter  = otel.Meter("causalgrid.propagation")
)

var (
	simulationLatency    metric.Float64Histogram
	simulationIterations metric.Int64Histogram
	simulationTotal      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		simulationLatency, err = meter.Float64Histogram(
			"propagation_simulation_duration_seconds",
			metric.WithDescription("Duration of intervention simulations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		simulationIterations, err = meter.Int64Histogram(
			"propagation_simulation_iterations",
			metric.WithDescription("Relaxation iterations per simulation"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		simulationTotal, err = meter.Int64Counter(
			"propagation_simulation_total",
			metric.WithDescription("Total number of simulations by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordSimulationMetrics(ctx context.Context, duration time.Duration, report *EffectReport, err error) {
	if initMetrics() != nil {
		return
	}
	outcome := "converged"
	switch {
	case err != nil:
		outcome = "error"
	case report.TimedOut:
		outcome = "timed_out"
	case len(report.Diverged) > 0:
		outcome = "diverged"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	simulationLatency.Record(ctx, duration.Seconds(), attrs)
	simulationTotal.Add(ctx, 1, attrs)
	if report != nil {
		simulationIterations.Record(ctx, int64(report.Iterations), attrs)
	}
}
