package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures for callers.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindAuthorization ErrorKind = "authorization"
	KindPersistence   ErrorKind = "persistence"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrPersistence   = &Error{Kind: KindPersistence}
)

// Error carries the kind plus the offending field or id.
type Error struct {
	Kind    ErrorKind
	Field   string
	ID      int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on kind so errors.Is(err, ErrNotFound) works for any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Kind == e.Kind && t.Field == "" && t.ID == 0 && t.Message == ""
}

func validationError(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(entity string, id int) *Error {
	return &Error{Kind: KindNotFound, Field: entity, ID: id, Message: fmt.Sprintf("%s %d not found", entity, id)}
}

func conflictError(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: fmt.Sprintf(format, args...)}
}

func authorizationError(operation string) *Error {
	return &Error{Kind: KindAuthorization, Field: operation, Message: "insufficient permissions"}
}

// persistenceError wraps a store failure unless it already carries a kind.
func persistenceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindPersistence, Field: operation, Message: "store failure", Err: err}
}

// KindOf extracts the kind of err, defaulting to persistence for unknown
// failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}
