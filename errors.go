package onepage

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the single-page search.
type ErrorKind string

const (
	// KindInvalidInput reports a precondition violation, detected before any
	// render is attempted.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindRenderUnavailable reports that the renderer failed or returned a
	// malformed response. It is never confused with a page count.
	KindRenderUnavailable ErrorKind = "render_unavailable"
	// KindNotConverged reports that the probe budget or height ceiling was
	// exhausted without finding a single-page height.
	KindNotConverged ErrorKind = "not_converged"
	// KindTimedOut reports that the caller's context ended between probes.
	KindTimedOut ErrorKind = "timed_out"
	// KindClosed reports use of a closed Browser or Session.
	KindClosed ErrorKind = "closed"
	// KindInternal covers everything else.
	KindInternal ErrorKind = "internal"
)

// ErrClosed is returned when a closed [Browser] or [Session] is used.
var ErrClosed = errors.New("onepage: browser is closed")

// SearchError is the typed failure returned by the search and the browser.
type SearchError struct {
	Kind ErrorKind
	Msg  string
	// Probes is the number of renders completed before the failure.
	Probes int
	Err    error
}

func (e *SearchError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, probes int, err error, format string, args ...any) *SearchError {
	return &SearchError{Kind: kind, Msg: fmt.Sprintf(format, args...), Probes: probes, Err: err}
}

// KindOf maps err to its ErrorKind. Context cancellation and deadlines map to
// KindTimedOut. A nil error has no kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *SearchError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, ErrClosed) {
		return KindClosed
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimedOut
	}
	return KindInternal
}

// IsKind reports whether err is of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
