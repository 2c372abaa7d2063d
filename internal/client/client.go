// Package client executes authenticated calls against the Harness platform
// API with retry and failure classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stacklok/toolhive/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/rpcerr"
)

// Header names used to authenticate against the platform
const (
	HeaderAPIKey        = "x-api-key"
	HeaderAccount       = "Harness-Account"
	HeaderAuthorization = "Authorization"
)

// DefaultMaxResponseSize bounds how much of a response body is read (10MB).
const DefaultMaxResponseSize = 10 << 20

// Request describes one backend call.
type Request struct {
	Method string
	// Path is appended to the client's base URL.
	Path  string
	Query url.Values
	Body  any
	// Scope adds the account/org/project query parameters when AccountID is set.
	Scope auth.Scope
	// Retryable allows retries for methods that are not idempotent.
	Retryable bool
}

// Caller issues backend calls. Tool handlers depend on this interface.
//
//go:generate mockgen -destination=mocks/mock_caller.go -package=mocks github.com/harness/mcp-server/internal/client Caller
type Caller interface {
	// Do executes req and decodes a JSON response into out when out is non-nil.
	Do(ctx context.Context, req *Request, out any) error
}

// Client is the Caller backed by HTTP.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	policy          RetryPolicy
	maxResponseSize int64
}

var _ Caller = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithMaxResponseSize replaces DefaultMaxResponseSize. Larger responses
// fail with InternalError.
func WithMaxResponseSize(size int64) Option {
	return func(c *Client) {
		if size > 0 {
			c.maxResponseSize = size
		}
	}
}

// New creates a Client for the platform at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(parsed.String(), "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		policy:          DefaultRetryPolicy(),
		maxResponseSize: DefaultMaxResponseSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the platform base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do implements Caller. Credentials come from the Session in ctx. Retryable
// failures are retried per the client's policy; the final failure is
// returned as an *rpcerr.Error.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	session := auth.SessionFromContext(ctx)
	if session == nil {
		return rpcerr.New(rpcerr.InvalidCredential, "no session attached to backend call")
	}

	var body []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return rpcerr.Wrap(rpcerr.InternalError, err, "failed to encode request body")
		}
		body = encoded
	}

	retryAllowed := req.Retryable || isIdempotent(req.Method)
	attempt := 0
	operation := func() error {
		attempt++
		err := c.attempt(ctx, req, session, body, out)
		if err == nil {
			return nil
		}
		if !retryAllowed || !rpcerr.KindOf(err).Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warnf("Backend call %s %s failed on attempt %d, retrying in %s: %v",
			req.Method, req.Path, attempt, wait, err)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(newPolicyBackOff(c.policy), ctx), notify)
	if err == nil {
		return nil
	}
	if _, ok := err.(*rpcerr.Error); !ok {
		// the backoff loop returns bare context errors when it stops waiting
		return classifyTransport(ctx, err)
	}
	return err
}

func (c *Client) attempt(ctx context.Context, req *Request, session *auth.Session, body []byte, out any) error {
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if query := c.query(req); len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return rpcerr.Wrap(rpcerr.InternalError, err, "failed to build request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	setCredentials(httpReq.Header, session)

	logger.Debugf("Backend call %s %s", method, req.Path)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return classifyTransport(ctx, err)
	}
	if int64(len(payload)) > c.maxResponseSize {
		return rpcerr.New(rpcerr.InternalError, "backend response to %s %s exceeds %d bytes",
			method, req.Path, c.maxResponseSize)
	}

	if resp.StatusCode >= 400 {
		return classifyStatus(decodeAPIError(resp.StatusCode, payload))
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return rpcerr.Wrap(rpcerr.InternalError, err, "failed to decode backend response")
	}
	return nil
}

func (*Client) query(req *Request) url.Values {
	query := url.Values{}
	for key, values := range req.Query {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	if req.Scope.AccountID != "" {
		query.Set("accountIdentifier", req.Scope.AccountID)
	}
	if req.Scope.OrgID != "" {
		query.Set("orgIdentifier", req.Scope.OrgID)
	}
	if req.Scope.ProjectID != "" {
		query.Set("projectIdentifier", req.Scope.ProjectID)
	}
	return query
}

// setCredentials attaches the header pair matching how the session
// authenticated.
func setCredentials(header http.Header, session *auth.Session) {
	if session.Principal.Kind == auth.PrincipalAPIKey {
		header.Set(HeaderAPIKey, session.Credential)
		header.Set(HeaderAccount, session.Principal.AccountID)
		return
	}
	header.Set(HeaderAuthorization, "Bearer "+session.Credential)
}

// decodeAPIError reads the platform's {"code","message"} error body, falling
// back to the raw text.
func decodeAPIError(status int, payload []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && (body.Message != "" || body.Code != "") {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(payload))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func isIdempotent(method string) bool {
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}
