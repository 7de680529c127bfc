// Package errkind classifies errors that cross component boundaries so
// callers can decide retry/skip/abort policy without string matching.
package errkind

import "fmt"

// Kind is a tag for the handling policy an error requires, per the
// failure-mode table each component follows.
type Kind int

const (
	// Unknown is the zero value; treat conservatively (abort, don't retry).
	Unknown Kind = iota
	// Transient covers rate-limits, timeouts, and refused connections.
	// Callers should retry with backoff.
	Transient
	// Malformed covers remote data missing fields or carrying unparsable
	// timestamps. Callers should coerce best-effort and skip the item if
	// unrecoverable.
	Malformed
	// ProviderHardFailure covers auth failures and exhausted quota.
	// Callers should abort the current batch, not retry.
	ProviderHardFailure
	// Persistence covers cache/store write failures.
	Persistence
	// QueryParse covers unparsable LLM responses.
	QueryParse
	// Configuration covers invalid config discovered at construction time.
	Configuration
	// Cancelled covers user- or signal-driven cancellation.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Malformed:
		return "malformed"
	case ProviderHardFailure:
		return "provider_hard_failure"
	case Persistence:
		return "persistence"
	case QueryParse:
		return "query_parse"
	case Configuration:
		return "configuration"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind so errors.As can recover the
// classification across package boundaries without string inspection.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a Kind and an operation label.
func New(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ke, ok := err.(*Error); ok {
			e = ke
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// Retryable reports whether the error's kind warrants a retry-with-backoff.
func Retryable(err error) bool {
	return Is(err, Transient)
}
