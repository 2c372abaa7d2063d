package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/harness/mcp-server/internal/rpcerr"
)

// APIError is a non-2xx response from the remote platform.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "harness: HTTP %d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&builder, " %s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&builder, ": %s", e.Message)
	}
	return builder.String()
}

// IsNotFound reports whether err is a 404 from the remote platform.
func IsNotFound(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusNotFound
}

// kindForStatus classifies a remote HTTP status.
func kindForStatus(status int) rpcerr.Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return rpcerr.RateLimited
	case status == http.StatusRequestTimeout:
		return rpcerr.Timeout
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return rpcerr.InvalidCredential
	case status >= 500:
		return rpcerr.ServerError
	case status >= 400:
		return rpcerr.ClientError
	default:
		return rpcerr.InternalError
	}
}

// classifyTransport classifies an error returned by http.Client.Do.
func classifyTransport(ctx context.Context, err error) *rpcerr.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return rpcerr.Wrap(rpcerr.Timeout, err, "backend call timed out")
	}
	if errors.Is(err, context.Canceled) {
		return rpcerr.Wrap(rpcerr.InternalError, err, "backend call cancelled")
	}
	return rpcerr.Wrap(rpcerr.Network, err, "backend unreachable")
}

// classifyStatus wraps an APIError into its classified kind.
func classifyStatus(apiErr *APIError) *rpcerr.Error {
	return rpcerr.Wrap(kindForStatus(apiErr.StatusCode), apiErr, "backend returned %d", apiErr.StatusCode)
}
