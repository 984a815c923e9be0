package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/chitchat/chitchat/pkg/client"
)

var (
	errEmptyResponse = errors.New("empty response from server")
	errNotSignedIn   = errors.New("not signed in")
)

// Kind classifies a store failure.
type Kind string

const (
	KindTransport  Kind = "transport"
	KindAuth       Kind = "auth"
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindRejected   Kind = "rejected"
)

// Error is the typed failure every store operation reports.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store.%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("store.%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a store error, or "" for other errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err is a store error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// classify maps a transport error onto the store taxonomy.
func classify(op string, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return &Error{Op: op, Kind: se.Kind, Err: se.Err}
	}
	var httpErr *client.HTTPError
	if !errors.As(err, &httpErr) {
		return &Error{Op: op, Kind: KindTransport, Err: err}
	}
	switch code := httpErr.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &Error{Op: op, Kind: KindAuth, Err: err}
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return &Error{Op: op, Kind: KindValidation, Err: err}
	case code == http.StatusNotFound:
		return &Error{Op: op, Kind: KindNotFound, Err: err}
	case code >= 400 && code < 500:
		return &Error{Op: op, Kind: KindRejected, Err: err}
	default:
		return &Error{Op: op, Kind: KindTransport, Err: err}
	}
}

func invalid(op, msg string) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: errors.New(msg)}
}

func notFound(op, format string, args ...any) *Error {
	return &Error{Op: op, Kind: KindNotFound, Err: fmt.Errorf(format, args...)}
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
