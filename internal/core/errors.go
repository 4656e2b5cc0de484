package core

// errors.go defines the typed error model shared by every operation. An
// error's Kind tells the caller what category of failure occurred without
// parsing message text; Op records which operation produced it.

import (
	"errors"
	"fmt"

	"github.com/sheetvault/sheetvault/internal/store"
)

// Kind classifies an operation failure.
type Kind string

const (
	// KindIO covers filesystem and stream failures outside the store.
	KindIO Kind = "io"
	// KindParse covers malformed input: bad CSV, bad workbook, bad request.
	KindParse Kind = "parse"
	// KindStorage covers store-level failures: transactions, statements.
	KindStorage Kind = "storage"
	// KindNotFound means the referenced dataset does not exist.
	KindNotFound Kind = "not_found"
	// KindCorrupt means stored data violates the dense-grid shape.
	KindCorrupt Kind = "corrupt"
)

// Error is the typed error returned by all service operations.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// errorf builds a typed error from a format string. Use %w to preserve an
// underlying cause.
func errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// ErrorKind extracts the Kind from err, or "" if err carries none.
func ErrorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound reports whether err is a missing-dataset error.
func IsNotFound(err error) bool {
	return ErrorKind(err) == KindNotFound
}

// wrapStorage classifies an error escaping a store transaction. Typed errors
// raised inside the transaction pass through unchanged so a NotFound stays a
// NotFound; anything else is a storage failure.
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// WrapOpen classifies an error from store.Open: a schema mismatch is a
// storage-level problem with the file's contents, everything else is an IO
// failure reaching it.
func WrapOpen(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrSchemaMismatch) {
		return &Error{Kind: KindStorage, Op: "open", Err: err}
	}
	return &Error{Kind: KindIO, Op: "open", Err: err}
}
