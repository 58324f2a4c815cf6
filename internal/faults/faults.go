// Package faults defines the fault categories the engine raises. All
// faults are synchronous; there is no retry machinery here. Recovery,
// if any, belongs to callers or the hook pipeline wrapping the engine.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes faults.
type Code string

const (
	// CodeValidation indicates a malformed request: missing type name,
	// malformed entity, or a query plan that fails translation rules.
	CodeValidation Code = "VALIDATION"

	// CodeNotFound indicates the target of an update/delete does not
	// exist, or an alternate-key lookup matched nothing.
	CodeNotFound Code = "NOT_FOUND"

	// CodeUniqueness indicates a duplicate alternate-key value combination.
	CodeUniqueness Code = "UNIQUENESS"

	// CodeTypeMismatch indicates an incompatible value type in a
	// condition, e.g. a reference value compared against a plain
	// identifier attribute.
	CodeTypeMismatch Code = "TYPE_MISMATCH"

	// CodeRange indicates a value outside the supported range, e.g. a
	// date earlier than the storage minimum.
	CodeRange Code = "RANGE"

	// CodeConcurrency indicates an optimistic-concurrency token that does
	// not match the stored record version.
	CodeConcurrency Code = "CONCURRENCY"
)

// Fault is a categorized engine error.
type Fault struct {
	// Code identifies the fault category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Entity names the affected entity type, when known.
	Entity string

	// Attributes lists the attributes involved (e.g. the alternate-key
	// attributes of a uniqueness fault).
	Attributes []string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	switch {
	case f.Entity != "" && len(f.Attributes) > 0:
		return fmt.Sprintf("%s: %s (entity=%s, attributes=%s)", f.Code, f.Message, f.Entity, strings.Join(f.Attributes, ","))
	case f.Entity != "":
		return fmt.Sprintf("%s: %s (entity=%s)", f.Code, f.Message, f.Entity)
	default:
		return fmt.Sprintf("%s: %s", f.Code, f.Message)
	}
}

// Validation creates a validation fault.
func Validation(format string, args ...any) *Fault {
	return &Fault{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found fault.
func NotFound(entity, format string, args ...any) *Fault {
	return &Fault{Code: CodeNotFound, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// Uniqueness creates a uniqueness fault naming the violated key attributes.
func Uniqueness(entity string, attributes []string) *Fault {
	return &Fault{
		Code:       CodeUniqueness,
		Entity:     entity,
		Attributes: attributes,
		Message:    fmt.Sprintf("a record with matching key attributes [%s] already exists", strings.Join(attributes, ", ")),
	}
}

// TypeMismatch creates a type-mismatch fault.
func TypeMismatch(format string, args ...any) *Fault {
	return &Fault{Code: CodeTypeMismatch, Message: fmt.Sprintf(format, args...)}
}

// Range creates a range fault.
func Range(format string, args ...any) *Fault {
	return &Fault{Code: CodeRange, Message: fmt.Sprintf(format, args...)}
}

// Concurrency creates a concurrency fault.
func Concurrency(entity string, supplied, stored int64) *Fault {
	return &Fault{
		Code:    CodeConcurrency,
		Entity:  entity,
		Message: fmt.Sprintf("version token %d does not match stored version %d", supplied, stored),
	}
}

// is reports whether err is a Fault with the given code.
// Uses errors.As to handle wrapped errors.
func is(err error, code Code) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code == code
	}
	return false
}

// IsValidation reports whether err is a validation fault.
func IsValidation(err error) bool { return is(err, CodeValidation) }

// IsNotFound reports whether err is a not-found fault.
func IsNotFound(err error) bool { return is(err, CodeNotFound) }

// IsUniqueness reports whether err is a uniqueness fault.
func IsUniqueness(err error) bool { return is(err, CodeUniqueness) }

// IsTypeMismatch reports whether err is a type-mismatch fault.
func IsTypeMismatch(err error) bool { return is(err, CodeTypeMismatch) }

// IsRange reports whether err is a range fault.
func IsRange(err error) bool { return is(err, CodeRange) }

// IsConcurrency reports whether err is a concurrency fault.
func IsConcurrency(err error) bool { return is(err, CodeConcurrency) }
