// Package errors provides error handling for agora.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//   - Network portability for distributed systems
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
//	// Check errors
//	if errors.Is(err, ErrNotFound) {
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
	WithHint        = crdb.WithHint
	WithHintf       = crdb.WithHintf
	WithDetail      = crdb.WithDetail
	WithDetailf     = crdb.WithDetailf
	WithSafeDetails = crdb.WithSafeDetails
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors recognized across the core. Handlers and sub-stores
// compare against these with Is rather than string matching.
var (
	// ErrNotFound marks a container that has never been written. The csv
	// sub-stores do not return it: they load a missing container as an
	// empty model, and callers decide whether that is an error.
	ErrNotFound = crdb.New("agora: not found")

	// ErrDescriptionMismatch marks a client-supplied block description
	// that conflicts with the one already persisted for the application.
	ErrDescriptionMismatch = crdb.New("agora: description mismatch")

	// ErrMalformedMessage marks a message that failed sanitization or
	// topic/payload parsing.
	ErrMalformedMessage = crdb.New("agora: malformed message")

	// ErrPluginFailed marks a non-zero plugin exit or a Wait failure.
	ErrPluginFailed = crdb.New("agora: plugin failed")

	// ErrInconsistentState marks storage that does not form a valid
	// recovery state (e.g. a model without a description).
	ErrInconsistentState = crdb.New("agora: inconsistent storage state")

	// ErrShuttingDown marks a remote handler that has been asked to stop.
	// RecvMessage does not return it; it reports shutdown as ok == false.
	ErrShuttingDown = crdb.New("agora: shutting down")
)
