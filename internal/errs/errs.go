package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies pipeline failures. Callers match on it with errors.Is
// against the sentinels below.
type Kind string

const (
	KindInvalidTransition       Kind = "INVALID_TRANSITION"
	KindComponentShortage       Kind = "COMPONENT_SHORTAGE"
	KindMissingCoordinates      Kind = "MISSING_COORDINATES"
	KindInsufficientCoordinates Kind = "INSUFFICIENT_COORDINATES"
	KindInvalidPermutation      Kind = "INVALID_PERMUTATION"
	KindConcurrencyConflict     Kind = "CONCURRENCY_CONFLICT"
	KindUpstreamUnavailable     Kind = "UPSTREAM_UNAVAILABLE"
	KindNotFound                Kind = "NOT_FOUND"
	KindValidation              Kind = "VALIDATION_ERROR"
)

var (
	ErrInvalidTransition       = &Error{Kind: KindInvalidTransition}
	ErrComponentShortage       = &Error{Kind: KindComponentShortage}
	ErrMissingCoordinates      = &Error{Kind: KindMissingCoordinates}
	ErrInsufficientCoordinates = &Error{Kind: KindInsufficientCoordinates}
	ErrInvalidPermutation      = &Error{Kind: KindInvalidPermutation}
	ErrConcurrencyConflict     = &Error{Kind: KindConcurrencyConflict}
	ErrUpstreamUnavailable     = &Error{Kind: KindUpstreamUnavailable}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrValidation              = &Error{Kind: KindValidation}
)

// Error is the single error type surfaced by the pipeline services.
type Error struct {
	Kind    Kind
	Message string

	// Entity and the attempted transition, for KindInvalidTransition.
	Entity string
	From   string
	To     string

	// SKUs short of stock, for KindComponentShortage.
	SKUs []string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	switch {
	case e.Message != "":
		b.WriteString(": ")
		b.WriteString(e.Message)
	case e.Kind == KindInvalidTransition && e.Entity != "":
		fmt.Fprintf(&b, ": %s %s -> %s", e.Entity, e.From, e.To)
	case e.Kind == KindComponentShortage && len(e.SKUs) > 0:
		fmt.Fprintf(&b, ": %s", strings.Join(e.SKUs, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the package sentinels work with
// errors.Is regardless of the details carried.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func InvalidTransition(entity, from, to string) *Error {
	return &Error{Kind: KindInvalidTransition, Entity: entity, From: from, To: to}
}

func ComponentShortage(skus ...string) *Error {
	return &Error{Kind: KindComponentShortage, SKUs: append([]string(nil), skus...)}
}

func MissingCoordinates(stop string) *Error {
	return &Error{Kind: KindMissingCoordinates, Message: fmt.Sprintf("stop %s has no coordinates", stop)}
}

func InsufficientCoordinates(have int) *Error {
	return &Error{Kind: KindInsufficientCoordinates, Message: fmt.Sprintf("need at least 2 stops with coordinates, have %d", have)}
}

func InvalidPermutation(msg string) *Error {
	return &Error{Kind: KindInvalidPermutation, Message: msg}
}

func Conflict(op string, err error) *Error {
	return &Error{Kind: KindConcurrencyConflict, Message: op, Err: err}
}

func Upstream(op string, err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Message: op, Err: err}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in the chain, or "" when err
// carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ShortageSKUs extracts the short SKUs from a ComponentShortage error.
func ShortageSKUs(err error) []string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindComponentShortage {
		return e.SKUs
	}
	return nil
}

// IsRetryable reports whether the pipeline may retry err on its own.
// Only lost races and upstream outages qualify; validation failures are the
// caller's to fix.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindConcurrencyConflict, KindUpstreamUnavailable:
		return true
	default:
		return false
	}
}

// HTTPStatus maps err onto a response code for the HTTP surface.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindMissingCoordinates, KindInsufficientCoordinates, KindInvalidPermutation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition, KindConcurrencyConflict:
		return http.StatusConflict
	case KindComponentShortage:
		return http.StatusUnprocessableEntity
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
