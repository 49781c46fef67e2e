// Package mcperr defines the closed set of error kinds tool handlers may
// surface, and their deterministic mapping to JSON-RPC error codes. Handler
// failures are classified at the point of failure, not pattern-matched at
// the dispatch boundary.
package mcperr

import (
	"errors"
	"fmt"

	"github.com/rayhanfay/sistem-rangkuman-data/pkg/jsonrpc"
)

// Kind classifies a handler failure.
type Kind int

const (
	// Validation covers bad tool names, missing required arguments, and
	// malformed filter values. Rejected before any collaborator call.
	Validation Kind = iota
	// NotFound covers absent resources, histories, and users.
	NotFound
	// Execution covers collaborator failures inside a tool run.
	Execution
	// Storage covers database open/IO failures.
	Storage
	// Internal covers everything else.
	Internal
)

// RPCCode maps the kind to its wire error code.
func (k Kind) RPCCode() int {
	switch k {
	case Validation:
		return jsonrpc.CodeInvalidParams
	case NotFound:
		return jsonrpc.CodeResourceNotFound
	case Execution:
		return jsonrpc.CodeToolExecutionFailed
	case Storage:
		return jsonrpc.CodeStorageUnavailable
	default:
		return jsonrpc.CodeInternalError
	}
}

// Error carries a kind and a message safe to show the client verbatim.
// The wrapped cause is for server-side logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind with a client-facing message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and client-facing message to a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// ClientMessage returns the message safe to send to the client. For
// unclassified errors it falls back to a generic internal message so raw
// server detail never reaches the wire.
func ClientMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
