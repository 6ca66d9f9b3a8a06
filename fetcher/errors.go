package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed fetch.
type Kind string

const (
	KindTimeout  Kind = "timeout"
	KindNetwork  Kind = "network"
	KindHTTP     Kind = "http"
	KindCanceled Kind = "canceled"
	KindRequest  Kind = "request" // the request could not be built
)

// Error is the typed failure half of a fetch outcome.
type Error struct {
	Kind       Kind
	Method     string
	URL        string
	StatusCode int // set for KindHTTP
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("fetch %s %s: HTTP %d after %d attempt(s)", e.Method, e.URL, e.StatusCode, e.Attempts)
	default:
		return fmt.Sprintf("fetch %s %s: %s after %d attempt(s): %v", e.Method, e.URL, e.Kind, e.Attempts, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// retryable reports whether another attempt may succeed. Only idempotent
// methods are retried on 5xx.
func (e *Error) retryable() bool {
	switch e.Kind {
	case KindTimeout, KindNetwork:
		return true
	case KindHTTP:
		return e.StatusCode >= 500 && idempotent(e.Method)
	default:
		return false
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// IsKind reports whether err is a fetch Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}

// StatusCode extracts the HTTP status from a KindHTTP error, or 0.
func StatusCode(err error) int {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindHTTP {
		return fe.StatusCode
	}
	return 0
}
