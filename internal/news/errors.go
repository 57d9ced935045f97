package news

import (
	"errors"
	"fmt"
)

// ErrorKind tags a pipeline failure so callers can branch on the class of
// error without string matching.
type ErrorKind string

// Failure classes produced by the fetch/extract/store pipeline.
const (
	KindRateLimited  ErrorKind = "rate_limited"
	KindForbidden    ErrorKind = "forbidden"
	KindNetwork      ErrorKind = "network"
	KindParse        ErrorKind = "parse"
	KindInvalidInput ErrorKind = "invalid_input"
)

// FetchError is the typed failure threaded through the pipeline instead of
// letting raw transport errors cross component boundaries.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Kind, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps err with a kind and the URL it occurred on.
func NewFetchError(kind ErrorKind, url string, statusCode int, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, StatusCode: statusCode, Err: err}
}

// KindOf reports the ErrorKind carried by err, or KindNetwork when err is not
// a FetchError (transport-level errors are the only untyped escapes).
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNetwork
}

// IsSoft reports whether err is a delay-and-continue failure (rate limited or
// forbidden) rather than one worth retrying or escalating.
func IsSoft(err error) bool {
	k := KindOf(err)
	return k == KindRateLimited || k == KindForbidden
}
