// Package sbench structured error types shared by every backend
package sbench

import (
	"errors"
	"fmt"
)

// ErrorKind represents categories of errors
type ErrorKind int

const (
	// Invalid options, block sizes, alignment values or layouts
	KindConfiguration ErrorKind = iota
	// Failures reported by an execution backend
	KindPlatform
	// Stride choices that map onto the same cache sets
	KindCacheConflict
	// Lifecycle methods called out of order
	KindUsage
)

// Error represents a structured error with context
type Error struct {
	Kind    ErrorKind
	Op      string // Operation that failed
	Message string // Human-readable message
	Err     error  // Underlying error if any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sbench %s error in %s: %s (caused by: %v)",
			e.Kind, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("sbench %s error in %s: %s", e.Kind, e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind and operation.
// This lets the sentinels below match errors built with extra context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Op == t.Op && (t.Message == "" || t.Message == e.Message)
}

// String returns the error kind as a string
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "Configuration"
	case KindPlatform:
		return "Platform"
	case KindCacheConflict:
		return "CacheConflict"
	case KindUsage:
		return "Usage"
	default:
		return "Unknown"
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(op, message string) error {
	return &Error{Kind: KindConfiguration, Op: op, Message: message}
}

// NewPlatformError creates a backend error
func NewPlatformError(op, message string, err error) error {
	return &Error{Kind: KindPlatform, Op: op, Message: message, Err: err}
}

// NewCacheConflictError creates a cache conflict diagnostic
func NewCacheConflictError(op, message string) error {
	return &Error{Kind: KindCacheConflict, Op: op, Message: message}
}

// NewUsageError creates a lifecycle misuse error
func NewUsageError(op, message string) error {
	return &Error{Kind: KindUsage, Op: op, Message: message}
}

// Common pre-defined errors

var (
	// ErrInvalidBlockSize indicates a non-positive tile dimension
	ErrInvalidBlockSize = NewConfigurationError("BlockSize", "invalid block size")

	// ErrInvalidAlignment indicates an alignment value of one or less on the aligned path
	ErrInvalidAlignment = NewConfigurationError("Alignment", "alignment must be greater than one")

	// ErrLifecycle indicates Run was called before Prerun or after Close
	ErrLifecycle = NewUsageError("Lifecycle", "")
)

func kindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindConfiguration
}

// IsPlatformError checks if an error is a platform error
func IsPlatformError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindPlatform
}

// IsCacheConflict checks if an error is a cache conflict diagnostic
func IsCacheConflict(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindCacheConflict
}

// IsUsageError checks if an error is a lifecycle misuse
func IsUsageError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindUsage
}
