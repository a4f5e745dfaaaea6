package core

import (
	"rdcatalog/lib/restyutil"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/dataportal/core")
var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput enables raw request/response snapshots for
// every client created afterwards. Useful for replaying ambiguous
// portal responses.
func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
