// Package coreerr defines the closed error taxonomy shared by every layer
// of the trading runtime. Every error that crosses a component boundary is
// either one of these typed errors or wraps one, so callers can branch on
// Kind with errors.As instead of matching strings.
package coreerr

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the closed set of error categories the runtime distinguishes.
type Kind string

const (
	KindConfigInvalid          Kind = "CONFIG_INVALID"
	KindStrategyNotFound       Kind = "STRATEGY_NOT_FOUND"
	KindStrategyAlreadyExists  Kind = "STRATEGY_ALREADY_EXISTS"
	KindAlreadyRunning         Kind = "ALREADY_RUNNING"
	KindNotRunning             Kind = "NOT_RUNNING"
	KindInsufficientQuantity   Kind = "INSUFFICIENT_QUANTITY"
	KindPositionNotFound       Kind = "POSITION_NOT_FOUND"
	KindSymbolPositionNotFound Kind = "SYMBOL_POSITION_NOT_FOUND"
	KindVenueNetwork           Kind = "VENUE_NETWORK"
	KindVenueAPI               Kind = "VENUE_API"
	KindVenueParse             Kind = "VENUE_PARSE"
	KindCancelledOrTimeout     Kind = "CANCELLED_OR_TIMEOUT"
	KindInternal               Kind = "INTERNAL"
)

// Error is the concrete type behind every Kind above. Code and Message are
// only populated for KindVenueAPI.
type Error struct {
	Kind    Kind
	Op      string // component/operation that raised it, e.g. "stratengine.Register"
	Code    int    // VenueAPI: upstream HTTP/RPC status, if any
	Message string // VenueAPI: upstream message
	Err     error  // wrapped cause, if any
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindVenueAPI && e.Message != "":
		return fmt.Sprintf("%s: %s (code %d): %s", e.Op, e.Kind, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, coreerr.New(kind, "")) to match on Kind alone,
// ignoring Op/Err, which is how callers typically want to branch.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a bare typed error with no wrapped cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap builds a typed error around an existing cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// VenueAPIError builds the VenueApi{code, message} variant.
func VenueAPIError(op string, code int, message string) *Error {
	return &Error{Kind: KindVenueAPI, Op: op, Code: code, Message: message}
}

// KindOf extracts the Kind of err if it is, or wraps, a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is, or wraps, an *Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// RateLimited is not a member of Kind's error set: per spec it is a control
// result, not an error. It is returned alongside a nil error by components
// that enforce rate limits (internal/ratelimit, the venue client).
type RateLimited struct {
	RetryAfter time.Duration
}
