package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every adapter error wraps exactly one of these, so callers
// classify with errors.Is(err, provider.ErrNotFound).
var (
	ErrAuth     = errors.New("authentication failed")
	ErrNotFound = errors.New("symbol not found")
	ErrUpstream = errors.New("upstream error")
	ErrNoData   = errors.New("no data")
	ErrTimeout  = errors.New("request timed out")
)

// Error describes a failed adapter call.
type Error struct {
	Provider string
	Op       string
	Symbol   string
	Kind     error
	Status   int // HTTP status, 0 when not applicable
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Op)
	if e.Symbol != "" {
		msg += " " + e.Symbol
	}
	msg += ": " + e.Kind.Error()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindForStatus maps an HTTP status to an error kind. 2xx maps to nil.
func KindForStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrUpstream
	}
}

// transportError classifies an error raised below the HTTP layer.
func transportError(provider, op, symbol string, err error) *Error {
	kind := ErrUpstream
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	return &Error{Provider: provider, Op: op, Symbol: symbol, Kind: kind, Err: err}
}

// IsKind reports whether err carries any of the given kinds.
func IsKind(err error, kinds ...error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
