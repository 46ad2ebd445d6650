// Package routing decides where a document ends up and performs the single
// terminal write for it.
package routing

import "redact-backend/internal/results"

const (
	ReasonExtractionFailed = "extraction_failed"
	ReasonInternal         = "internal_error"
)

// Signals summarizes what happened to a document before routing.
type Signals struct {
	Rejected         bool
	RejectReason     string
	ExtractionFailed bool
	Internal         bool
	Redacted         bool
}

// Decision is the routing verdict.
type Decision struct {
	Status results.Status
	Reason string
}

// Quarantine reports whether the document goes to quarantine.
func (d Decision) Quarantine() bool { return d.Status == results.StatusQuarantined }

// Decide maps signals to a decision. Earlier failures win; a document that
// neither failed nor finished redaction is treated as an internal error.
func Decide(s Signals) Decision {
	switch {
	case s.Rejected:
		reason := s.RejectReason
		if reason == "" {
			reason = ReasonInternal
		}
		return Decision{Status: results.StatusQuarantined, Reason: reason}
	case s.ExtractionFailed:
		return Decision{Status: results.StatusQuarantined, Reason: ReasonExtractionFailed}
	case s.Internal:
		return Decision{Status: results.StatusQuarantined, Reason: ReasonInternal}
	case s.Redacted:
		return Decision{Status: results.StatusProcessed}
	default:
		return Decision{Status: results.StatusQuarantined, Reason: ReasonInternal}
	}
}
