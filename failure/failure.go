// Package failure maps arbitrary errors raised during pipeline execution into
// a severity / retryability classification. The classification is advisory
// metadata attached to phase results; the pipeline itself never retries.
package failure

import (
	"context"
	"errors"
	"time"
)

// Class categorizes a failure by retryability.
type Class string

const (
	// Transient marks failures where retrying the whole phase is reasonable
	// (timeouts, rate limits, momentarily unavailable capabilities).
	Transient Class = "transient"
	// Permanent marks failures where a retry without changed input is
	// pointless (malformed configuration, rejected input).
	Permanent Class = "permanent"
	// Unknown marks anything unrecognized, conservatively treated as
	// non-retryable.
	Unknown Class = "unknown"
)

// Severity grades the operational impact of a failure.
type Severity string

const (
	// SeverityWarning marks recoverable conditions surfaced for visibility.
	SeverityWarning Severity = "warning"
	// SeverityError marks failures that terminated a phase.
	SeverityError Severity = "error"
)

// Sentinel categories recognized by Classify. Wrap these with fmt.Errorf
// ("%w") to preserve classification through error chains.
var (
	// ErrTimeout indicates a blocking call exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
	// ErrMalformedResponse indicates a capability returned output that could
	// not be parsed into the expected structure.
	ErrMalformedResponse = errors.New("malformed capability response")
	// ErrRejectedInput indicates a capability explicitly refused the request
	// on policy or validation grounds.
	ErrRejectedInput = errors.New("input rejected")
	// ErrCapabilityUnavailable indicates a tool or inference capability could
	// not be reached.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	// ErrRoundLimit indicates a conversation exhausted its round ceiling
	// without satisfying its termination predicate.
	ErrRoundLimit = errors.New("round limit exhausted")
	// ErrInvalidSelection indicates the speaker selector produced a name
	// outside the candidate set.
	ErrInvalidSelection = errors.New("invalid speaker selection")
	// ErrMalformedConfig indicates invalid static configuration (missing
	// agents, empty phase list, unsatisfiable selection candidates).
	ErrMalformedConfig = errors.New("malformed configuration")
)

// Record is the immutable classification attached to a failed phase.
type Record struct {
	Class     Class     `json:"class"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Phase     string    `json:"phase,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Classify maps err into a Record with empty phase/agent attribution.
func Classify(err error) Record {
	return ClassifyWith(err, "", "")
}

// ClassifyWith maps err into a Record attributed to the given phase and agent.
// Recognized sentinel categories and context deadline errors determine the
// class; everything else is Unknown.
func ClassifyWith(err error, phase, agent string) Record {
	rec := Record{
		Class:     Unknown,
		Severity:  SeverityError,
		Phase:     phase,
		Agent:     agent,
		Timestamp: time.Now().UTC(),
	}
	if err == nil {
		rec.Message = "unspecified failure"
		return rec
	}
	rec.Message = err.Error()

	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrCapabilityUnavailable):
		rec.Class = Transient
	case errors.Is(err, ErrRejectedInput),
		errors.Is(err, ErrMalformedConfig):
		rec.Class = Permanent
	case errors.Is(err, ErrRoundLimit),
		errors.Is(err, ErrInvalidSelection),
		errors.Is(err, ErrMalformedResponse):
		rec.Class = Unknown
	}
	return rec
}

// Retryable reports whether the record's class permits a caller-side retry of
// the whole phase.
func (r Record) Retryable() bool { return r.Class == Transient }
