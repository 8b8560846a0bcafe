package sources

import (
	"errors"
	"fmt"
)

// TransientSourceError covers 5xx, timeouts, and connection resets. The
// coordinator may retry and counts the run as partial on exhaustion.
type TransientSourceError struct {
	Source string
	Status int
	Err    error
}

func (e *TransientSourceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: transient failure (status %d)", e.Source, e.Status)
	}
	return fmt.Sprintf("%s: transient failure: %v", e.Source, e.Err)
}

func (e *TransientSourceError) Unwrap() error { return e.Err }

// RateLimitedError is returned on 429. SAM.gov's is terminal within a run.
type RateLimitedError struct {
	Source string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited (429)", e.Source)
}

// PermanentSourceError covers non-429 4xx responses. The run records partial
// and continues with other providers.
type PermanentSourceError struct {
	Source string
	Status int
}

func (e *PermanentSourceError) Error() string {
	return fmt.Sprintf("%s: permanent failure (status %d)", e.Source, e.Status)
}

// classifyStatus maps an HTTP status code to the source error taxonomy.
// 2xx maps to nil.
func classifyStatus(source string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 429:
		return &RateLimitedError{Source: source}
	case status >= 500:
		return &TransientSourceError{Source: source, Status: status}
	case status >= 400:
		return &PermanentSourceError{Source: source, Status: status}
	default:
		return &TransientSourceError{Source: source, Status: status}
	}
}

// classifyNetErr wraps transport-level failures (timeout, reset) as transient.
func classifyNetErr(source string, err error) error {
	return &TransientSourceError{Source: source, Err: err}
}

// IsRateLimited reports whether err is a 429 from any source.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// IsPermanent reports whether err is a non-retryable source failure.
func IsPermanent(err error) bool {
	var pe *PermanentSourceError
	return errors.As(err, &pe)
}
