// Package errors provides error handling for gantry.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for operator-facing messages
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check error kinds
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
	Join      = crdb.Join
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors forming the gantry error taxonomy. Each represents a
// kind of failure the plugin core can surface; callers classify with
// errors.Is and wrap with errors.Wrap to add context while preserving
// the kind.
var (
	// ErrNotFound indicates a lookup for a plugin or service missed.
	ErrNotFound = New("plugin not found")

	// ErrConflict indicates a duplicate plugin name without force.
	ErrConflict = New("plugin name conflict")

	// ErrInitFailed indicates a plugin's init phase failed.
	ErrInitFailed = New("plugin init failed")

	// ErrStartFailed indicates a plugin's start phase failed.
	ErrStartFailed = New("plugin start failed")

	// ErrStopFailed indicates a plugin's stop phase failed.
	// Rarely propagated: bulk shutdown treats stop failures as warnings.
	ErrStopFailed = New("plugin stop failed")

	// ErrPermissionDenied indicates a required permission is not granted.
	ErrPermissionDenied = New("permission denied")

	// ErrVersionIncompatible indicates a semantic version mismatch.
	ErrVersionIncompatible = New("version incompatible")

	// ErrConfigInvalid indicates plugin metadata or configuration failed validation.
	ErrConfigInvalid = New("invalid configuration")

	// ErrDependencyUnsatisfied indicates a declared plugin dependency is missing.
	ErrDependencyUnsatisfied = New("dependency unsatisfied")

	// ErrSecurityViolation indicates a signature or sandbox policy failure.
	ErrSecurityViolation = New("security violation")

	// ErrDiscoveryFailed indicates an entire discovery strategy failed,
	// as opposed to a single candidate being skipped.
	ErrDiscoveryFailed = New("discovery failed")
)

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsConflict checks if an error is or wraps ErrConflict.
func IsConflict(err error) bool {
	return err != nil && Is(err, ErrConflict)
}

// IsPermissionDenied checks if an error is or wraps ErrPermissionDenied.
func IsPermissionDenied(err error) bool {
	return err != nil && Is(err, ErrPermissionDenied)
}

// IsSecurityViolation checks if an error is or wraps ErrSecurityViolation.
func IsSecurityViolation(err error) bool {
	return err != nil && Is(err, ErrSecurityViolation)
}

// NewNotFound creates a not-found error with a formatted message.
func NewNotFound(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewConflict creates a conflict error with a formatted message.
func NewConflict(format string, args ...interface{}) error {
	return Wrap(ErrConflict, Newf(format, args...).Error())
}
