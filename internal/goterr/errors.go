// Package goterr defines the typed error kinds shared across the graph,
// scheduler, CAS, and coordinator packages, so callers can branch on
// failure class instead of matching error strings.
package goterr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for retry and reporting purposes.
type Kind string

const (
	DependencyMissing Kind = "dependency_missing"
	CycleDetected      Kind = "cycle_detected"
	CASNotFound        Kind = "cas_not_found"
	CASTransport       Kind = "cas_transport"
	OracleMalformed    Kind = "oracle_malformed"
	ProcessorTimeout   Kind = "processor_timeout"
	DeadlineExceeded   Kind = "deadline_exceeded"
	InvalidGraph       Kind = "invalid_graph"
)

// Error wraps an underlying cause with a Kind so callers can inspect what
// went wrong without parsing message text.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error for op with the given kind wrapping err.
func New(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Is reports whether err is a *Error of the given Kind, looking through
// wrapped chains.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether a Kind represents a transient failure worth
// retrying (transport-level) as opposed to a semantic/permanent one.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case CASTransport:
		return true
	default:
		return false
	}
}
