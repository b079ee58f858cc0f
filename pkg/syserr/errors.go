// Package syserr provides the classified error types shared by the syscfg
// manifest, registry, and backend layers.
package syserr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for recovery decisions at the command surface.
type Kind string

const (
	// KindNotFound indicates a manifest or registry entry is absent.
	// First-run paths recover from this locally (empty manifest, empty
	// registry) instead of failing.
	KindNotFound Kind = "not_found"

	// KindParse indicates a malformed persisted document. Fatal: the
	// loader surfaces it verbatim and returns no partial state.
	KindParse Kind = "parse"

	// KindBackendUnavailable indicates the selected package backend's
	// tooling is missing or unusable. Operations degrade to a warning
	// and a no-op result.
	KindBackendUnavailable Kind = "backend_unavailable"

	// KindNoBackend indicates no supported package backend could be
	// detected for this host. Same degradation as KindBackendUnavailable.
	KindNoBackend Kind = "no_backend"

	// KindConflict indicates a registry add collided with an existing
	// entry identity. Requires an explicit overwrite to proceed.
	KindConflict Kind = "conflict"

	// KindInstallFailed indicates a per-package install failure. Never
	// fatal to an apply batch; failures are aggregated into the report.
	KindInstallFailed Kind = "install_failed"
)

// Error is a classified error with operation context.
type Error struct {
	// Kind is the error classification.
	Kind Kind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Entity is the manifest host, registry identity, or package name
	// the error relates to, if applicable.
	Entity string `json:"entity,omitempty"`

	// Op is the operation being performed when the error occurred.
	Op string `json:"op,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Entity != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Entity)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is: two Errors match when their
// kinds match, so sentinel comparisons like errors.Is(err, NotFound("", ""))
// work without inspecting context fields.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithOp adds operation context to an error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// NotFound creates a not-found error for the given entity.
func NotFound(message, entity string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Entity: entity}
}

// Parse creates a fatal parse error wrapping the decoder failure.
func Parse(message string, err error) *Error {
	return &Error{Kind: KindParse, Message: message, Err: err}
}

// BackendUnavailable creates a backend-unavailable error.
func BackendUnavailable(message string, err error) *Error {
	return &Error{Kind: KindBackendUnavailable, Message: message, Err: err}
}

// NoBackend creates a no-backend error.
func NoBackend(message string) *Error {
	return &Error{Kind: KindNoBackend, Message: message}
}

// Conflict creates a conflict error for the given entity.
func Conflict(message, entity string) *Error {
	return &Error{Kind: KindConflict, Message: message, Entity: entity}
}

// InstallFailed creates a per-package install failure.
func InstallFailed(pkg string, err error) *Error {
	return &Error{Kind: KindInstallFailed, Message: "install failed", Entity: pkg, Err: err}
}

// IsNotFound returns true if the error is classified as not-found.
func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }

// IsParse returns true if the error is classified as a parse error.
func IsParse(err error) bool { return hasKind(err, KindParse) }

// IsBackendUnavailable returns true if the error is classified as
// backend-unavailable.
func IsBackendUnavailable(err error) bool { return hasKind(err, KindBackendUnavailable) }

// IsNoBackend returns true if the error is classified as no-backend.
func IsNoBackend(err error) bool { return hasKind(err, KindNoBackend) }

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool { return hasKind(err, KindConflict) }

// IsDegraded returns true if the error means the backend cannot serve this
// host and the operation should reduce to a warned no-op.
func IsDegraded(err error) bool {
	return IsNoBackend(err) || IsBackendUnavailable(err)
}

func hasKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
