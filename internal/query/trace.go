package query

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("causalgrid.query")
