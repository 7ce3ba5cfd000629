// Package model defines the domain types and error taxonomy shared across
// the storage engine.
package model

import (
	"errors"
	"fmt"
)

// Kind identifies the category of an Error.
type Kind string

const (
	KindIncorrectPassphrase Kind = "incorrect_passphrase"
	KindLedgerNotFound      Kind = "ledger_not_found"
	KindCrypto              Kind = "crypto"
	KindValidation          Kind = "validation"
	KindSchema              Kind = "schema"
	KindStorage             Kind = "storage"
	KindNotFound            Kind = "not_found"
	KindInvalidInput        Kind = "invalid_input"
	KindIO                  Kind = "io"
	KindJSON                Kind = "json"
)

// Error is the single error type surfaced across the engine. Kind lets
// callers switch on the category without type-asserting concrete types.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, model.ErrNotFound) match by Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" && t.Cause == nil {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapErr(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Sentinel values usable with errors.Is for kind-only matching.
var (
	ErrIncorrectPassphrase = &Error{Kind: KindIncorrectPassphrase}
	ErrLedgerNotFound      = &Error{Kind: KindLedgerNotFound}
	ErrNotFound            = &Error{Kind: KindNotFound}
)

func ErrorIncorrectPassphrase() error { return newErr(KindIncorrectPassphrase, "incorrect passphrase") }
func ErrorLedgerNotFound() error      { return newErr(KindLedgerNotFound, "ledger file not found") }

func ErrorCrypto(cause error, format string, args ...any) error {
	return wrapErr(KindCrypto, cause, format, args...)
}

func ErrorValidation(format string, args ...any) error {
	return newErr(KindValidation, format, args...)
}

func ErrorSchema(cause error, format string, args ...any) error {
	return wrapErr(KindSchema, cause, format, args...)
}

func ErrorStorage(cause error, format string, args ...any) error {
	return wrapErr(KindStorage, cause, format, args...)
}

func ErrorNotFound(format string, args ...any) error {
	return newErr(KindNotFound, format, args...)
}

func ErrorInvalidInput(format string, args ...any) error {
	return newErr(KindInvalidInput, format, args...)
}

func ErrorIO(cause error, format string, args ...any) error {
	return wrapErr(KindIO, cause, format, args...)
}

func ErrorJSON(cause error, format string, args ...any) error {
	return wrapErr(KindJSON, cause, format, args...)
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
