// Package errors provides standardized error types for idaframe operations.
// IdaError carries the operation, the table and column involved, and an
// optional cause, and supports errors.Is against the kind sentinels below.
package errors

import (
	"fmt"
)

// Kind classifies an IdaError.
type Kind int

const (
	KindInvalidInput Kind = iota
	KindTableNotFound
	KindColumnNotFound
	KindIntrospection
	KindUnknownType
	KindInternal
)

var kindNames = map[Kind]string{
	KindInvalidInput:   "invalid input",
	KindTableNotFound:  "table not found",
	KindColumnNotFound: "column not found",
	KindIntrospection:  "introspection",
	KindUnknownType:    "unknown type",
	KindInternal:       "internal",
}

// String returns the human-readable kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown_kind(%d)", int(k))
}

// IdaError represents standardized errors across all idaframe operations
type IdaError struct {
	Kind    Kind   // Error classification
	Op      string // Operation name (e.g., "Apply", "Head", "ParseSignature")
	Table   string // Table name if applicable
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *IdaError) Error() string {
	op := e.Op
	if op == "" {
		op = e.Kind.String()
	}
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}

	var s string
	switch {
	case e.Table != "" && e.Column != "":
		s = fmt.Sprintf("%s operation failed on column '%s' of table '%s': %s", op, e.Column, e.Table, msg)
	case e.Column != "":
		s = fmt.Sprintf("%s operation failed on column '%s': %s", op, e.Column, msg)
	case e.Table != "":
		s = fmt.Sprintf("%s operation failed on table '%s': %s", op, e.Table, msg)
	default:
		s = fmt.Sprintf("%s operation failed: %s", op, msg)
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap returns the underlying cause for error wrapping support
func (e *IdaError) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is().
// A target with only a Kind set (the package sentinels) matches any error of that kind.
func (e *IdaError) Is(target error) bool {
	t, ok := target.(*IdaError)
	if !ok {
		return false
	}
	if t.Op == "" && t.Table == "" && t.Column == "" && t.Message == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op && e.Table == t.Table &&
		e.Column == t.Column && e.Message == t.Message
}

// NewTableNotFoundError creates an error for operations on tables that do not exist
func NewTableNotFoundError(op, table string) *IdaError {
	return &IdaError{
		Kind:    KindTableNotFound,
		Op:      op,
		Table:   table,
		Message: "table does not exist",
	}
}

// NewColumnNotFoundError creates an error for operations on non-existent columns
func NewColumnNotFoundError(op, table, column string) *IdaError {
	return &IdaError{
		Kind:    KindColumnNotFound,
		Op:      op,
		Table:   table,
		Column:  column,
		Message: "column does not exist",
	}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *IdaError {
	return &IdaError{
		Kind:    KindInvalidInput,
		Op:      op,
		Message: message,
	}
}

// NewIntrospectionError reports that the source of a function could not be retrieved.
func NewIntrospectionError(function, message string, cause error) *IdaError {
	return &IdaError{
		Kind:    KindIntrospection,
		Op:      "Synthesize",
		Message: fmt.Sprintf("cannot retrieve source of function %q: %s", function, message),
		Cause:   cause,
	}
}

// NewUnknownTypeError reports an output signature entry with an unrecognized type tag.
func NewUnknownTypeError(column, tag string) *IdaError {
	return &IdaError{
		Kind:    KindUnknownType,
		Op:      "ParseSignature",
		Column:  column,
		Message: fmt.Sprintf("unknown type tag %q (want int, float, double or str)", tag),
	}
}

// NewInternalError creates an error for internal operation failures
func NewInternalError(op string, cause error) *IdaError {
	return &IdaError{
		Kind:    KindInternal,
		Op:      op,
		Message: "internal error occurred",
		Cause:   cause,
	}
}

// Sentinels for errors.Is checks by kind.
var (
	ErrInvalidInput   = &IdaError{Kind: KindInvalidInput}
	ErrTableNotFound  = &IdaError{Kind: KindTableNotFound}
	ErrColumnNotFound = &IdaError{Kind: KindColumnNotFound}
	ErrIntrospection  = &IdaError{Kind: KindIntrospection}
	ErrUnknownType    = &IdaError{Kind: KindUnknownType}
)
