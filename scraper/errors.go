package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// EnumerationError reports a catalog source that could not be enumerated.
// Fatal for a run only when it hits the first entry point; later sources
// degrade to warnings.
type EnumerationError struct {
	Source string
	Err    error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerate %s: %v", e.Source, e.Err)
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}

// FetchError wraps a failed page fetch with a transient/permanent split.
// Transient failures (timeouts, connection resets, 429, 5xx) are worth
// retrying; permanent ones (4xx) are not.
type FetchError struct {
	Transient bool
	Status    int
	Cause     error
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Status != 0 {
		return fmt.Sprintf("fetch (%s, status %d): %v", kind, e.Status, e.Cause)
	}
	return fmt.Sprintf("fetch (%s): %v", kind, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Category returns a short label for metrics and logs.
func (e *FetchError) Category() string {
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(e.Cause, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(e.Cause, &opErr) {
		return "connection"
	}
	switch e.Status {
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "rate_limited"
	}
	if e.Status >= 500 {
		return "server_error"
	}
	if e.Status != 0 {
		return "http_error"
	}
	return "other"
}

// IsTransientFetch reports whether err is a fetch failure worth retrying.
func IsTransientFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient
}

// classifyFetch builds a FetchError from a transport error and/or status
// code. A nil error with a 2xx status returns nil.
func classifyFetch(err error, status int) *FetchError {
	if err == nil && (status == 0 || (status >= 200 && status < 300)) {
		return nil
	}

	fe := &FetchError{Status: status, Cause: err}
	if fe.Cause == nil {
		fe.Cause = fmt.Errorf("http status %d", status)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fe.Transient = true
	case isNetError(err):
		fe.Transient = true
	case status == http.StatusTooManyRequests:
		fe.Transient = true
	case status >= 500:
		fe.Transient = true
	}
	return fe
}

func isNetError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
