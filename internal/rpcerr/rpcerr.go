// Package rpcerr defines the closed set of failure kinds surfaced by the
// gateway and their mapping onto JSON-RPC error codes.
package rpcerr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure. The set is closed; anything that cannot be
// classified is InternalError.
type Kind int

// Failure kinds
const (
	InternalError Kind = iota
	ParseError
	InvalidRequest
	MethodNotFound
	InvalidParams
	InvalidArguments
	InvalidCredential
	Expired
	ToolNotFound
	Network
	Timeout
	RateLimited
	ServerError
	ClientError
)

// Standard JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Gateway-specific codes in the -32000..-32099 server range
const (
	CodeUnauthorized = -32001
	CodeBackend      = -32003
	CodeToolNotFound = -32004
)

var kindNames = map[Kind]string{
	InternalError:     "InternalError",
	ParseError:        "ParseError",
	InvalidRequest:    "InvalidRequest",
	MethodNotFound:    "MethodNotFound",
	InvalidParams:     "InvalidParams",
	InvalidArguments:  "InvalidArguments",
	InvalidCredential: "InvalidCredential",
	Expired:           "Expired",
	ToolNotFound:      "ToolNotFound",
	Network:           "Network",
	Timeout:           "Timeout",
	RateLimited:       "RateLimited",
	ServerError:       "ServerError",
	ClientError:       "ClientError",
}

// String returns the kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Code returns the JSON-RPC error code for the kind.
func (k Kind) Code() int {
	switch k {
	case ParseError:
		return CodeParseError
	case InvalidRequest:
		return CodeInvalidRequest
	case MethodNotFound:
		return CodeMethodNotFound
	case InvalidParams, InvalidArguments:
		return CodeInvalidParams
	case InvalidCredential, Expired:
		return CodeUnauthorized
	case ToolNotFound:
		return CodeToolNotFound
	case Network, Timeout, RateLimited, ServerError, ClientError:
		return CodeBackend
	default:
		return CodeInternalError
	}
}

// Retryable reports whether a failure of this kind may succeed when the
// same call is issued again.
func (k Kind) Retryable() bool {
	switch k {
	case Network, Timeout, RateLimited, ServerError:
		return true
	default:
		return false
	}
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err as kind. The original error stays reachable through
// errors.Is and errors.As.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the JSON-RPC code of the error's kind.
func (e *Error) Code() int {
	return e.Kind.Code()
}

// KindOf extracts the kind of err. Context deadlines are Timeout; anything
// else that is not an *Error is InternalError.
func KindOf(err error) Kind {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return InternalError
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
