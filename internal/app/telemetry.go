package app

import (
	"context"
	"errors"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// telemetry owns the SDK providers installed as the otel globals. The
// instrumented packages only ever talk to the otel API.
type telemetry struct {
	registry *prometheus.Registry
	meters   *metric.MeterProvider
	tracer   *sdktrace.TracerProvider
}

func newTelemetry(traceOut io.Writer, traceStdout bool) (*telemetry, error) {
	res := resource.NewSchemaless(attribute.String("service.name", "causalgrid"))

	// A private registry keeps repeated App instances from colliding on
	// the default registerer.
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	t := &telemetry{
		registry: reg,
		meters:   metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res)),
	}
	otel.SetMeterProvider(t.meters)

	if traceStdout {
		spans, err := stdouttrace.New(stdouttrace.WithWriter(traceOut), stdouttrace.WithPrettyPrint())
		if err != nil {
			_ = t.meters.Shutdown(context.Background())
			return nil, err
		}
		t.tracer = sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans), sdktrace.WithResource(res))
		otel.SetTracerProvider(t.tracer)
	}
	return t, nil
}

// gatherer merges the otel instruments with the promauto collectors on the
// default registry.
func (t *telemetry) gatherer() prometheus.Gatherer {
	return prometheus.Gatherers{t.registry, prometheus.DefaultGatherer}
}

func (t *telemetry) shutdown(ctx context.Context) error {
	var errs []error
	if t.tracer != nil {
		errs = append(errs, t.tracer.Shutdown(ctx))
	}
	errs = append(errs, t.meters.Shutdown(ctx))
	return errors.Join(errs...)
}
