package entry

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("scrapers/dataportal/entry")
