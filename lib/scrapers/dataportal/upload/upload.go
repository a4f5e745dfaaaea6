// Package upload sequences the portal's multi-step submission
// workflows: two-phase metadata JSON upload, content archive upload
// and the image registration handshake. Every destructive POST is
// gated on a recognized, unambiguous signal from the step before it.
package upload

import (
	"fmt"

	"go.opentelemetry.io/otel"

	"rdcatalog/lib/scrapers/dataportal/core"
	"rdcatalog/lib/scrapers/dataportal/entry"
)

var tracer = otel.Tracer("scrapers/dataportal/upload")

// Orchestrator owns one portal session for the duration of its
// workflows. Run parallel workflows on independent clients; the
// session cookie jar is not shared.
type Orchestrator struct {
	client   *core.Client
	resolver *entry.Resolver

	// ContentsMatchMode selects substring or whole-line phrase
	// matching for the content archive step.
	ContentsMatchMode MatchMode
}

func NewOrchestrator(client *core.Client, resolver *entry.Resolver) *Orchestrator {
	return &Orchestrator{
		client:   client,
		resolver: resolver,
	}
}

// asError converts a terminal StepResult into the error callers see.
// Unrecognized surfaces as an ambiguous-response error, never as
// success.
func (r StepResult) asError(step string) error {
	switch r.Outcome {
	case OutcomeRejected:
		return fmt.Errorf("%s rejected: %s: %s", step, r.Reason, r.Excerpt)
	case OutcomeUnrecognized:
		return &core.AmbiguousResponseError{Step: step, Excerpt: r.Excerpt}
	default:
		return nil
	}
}
