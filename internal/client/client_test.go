package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/rpcerr"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2,
	}
}

func apiKeyContext() context.Context {
	return auth.WithSession(context.Background(), &auth.Session{
		Principal:  auth.Principal{AccountID: "acct", Kind: auth.PrincipalAPIKey},
		Credential: "pat.acct.tok.sig",
	})
}

func TestRetryPolicy_Delay(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    60 * time.Second,
		Multiplier:  2,
	}

	assert.Equal(t, time.Duration(0), policy.Delay(1))
	assert.Equal(t, 500*time.Millisecond, policy.Delay(2))
	assert.Equal(t, 1000*time.Millisecond, policy.Delay(3))
	assert.Equal(t, 2000*time.Millisecond, policy.Delay(4))

	for attempt := 1; attempt <= 200; attempt++ {
		assert.LessOrEqual(t, policy.Delay(attempt), 60*time.Second, "attempt %d", attempt)
	}
	assert.Equal(t, 60*time.Second, policy.Delay(50))
}

func TestRetryPolicy_Degenerate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Duration(0), RetryPolicy{}.Delay(3))
	assert.Equal(t, time.Second, RetryPolicy{BaseDelay: time.Second, Multiplier: 0.5}.Delay(4))
	assert.Equal(t, 1, RetryPolicy{}.attempts())
}

func TestPolicyBackOff(t *testing.T) {
	t.Parallel()

	b := newPolicyBackOff(RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, Multiplier: 3})
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 30*time.Millisecond, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
}

func TestClient_Do_APIKeyHeadersAndScope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pipeline/api/pipelines/list", r.URL.Path)
		assert.Equal(t, "pat.acct.tok.sig", r.Header.Get(HeaderAPIKey))
		assert.Equal(t, "acct", r.Header.Get(HeaderAccount))
		assert.Empty(t, r.Header.Get(HeaderAuthorization))
		assert.Equal(t, "acct", r.URL.Query().Get("accountIdentifier"))
		assert.Equal(t, "org", r.URL.Query().Get("orgIdentifier"))
		assert.Equal(t, "proj", r.URL.Query().Get("projectIdentifier"))
		assert.Equal(t, "5", r.URL.Query().Get("size"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"filterType":"PipelineSetup"}`, string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"SUCCESS","data":{"totalElements":2}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", WithRetryPolicy(fastPolicy(1)))
	require.NoError(t, err)

	var out map[string]any
	err = c.Do(apiKeyContext(), &Request{
		Method: http.MethodPost,
		Path:   "/pipeline/api/pipelines/list",
		Query:  map[string][]string{"size": {"5"}},
		Body:   map[string]string{"filterType": "PipelineSetup"},
		Scope:  auth.Scope{AccountID: "acct", OrgID: "org", ProjectID: "proj"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", out["status"])
}

func TestClient_Do_BearerHeader(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jwt-token", r.Header.Get(HeaderAuthorization))
		assert.Empty(t, r.Header.Get(HeaderAPIKey))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	ctx := auth.WithSession(context.Background(), &auth.Session{
		Principal:  auth.Principal{AccountID: "acct", Kind: auth.PrincipalService},
		Credential: "jwt-token",
	})
	require.NoError(t, c.Do(ctx, &Request{Path: "ng/api/ping"}, nil))
}

func TestClient_Do_RetriesRetryableFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithRetryPolicy(fastPolicy(4)))
	require.NoError(t, err)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.Do(apiKeyContext(), &Request{Path: "/x"}, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Do_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		method    string
		attempts  int
		wantKind  rpcerr.Kind
		wantCalls int32
	}{
		{
			name:      "server error exhausts retries",
			status:    http.StatusInternalServerError,
			attempts:  3,
			wantKind:  rpcerr.ServerError,
			wantCalls: 3,
		},
		{
			name:      "rate limited exhausts retries",
			status:    http.StatusTooManyRequests,
			attempts:  2,
			wantKind:  rpcerr.RateLimited,
			wantCalls: 2,
		},
		{
			name:      "client error is not retried",
			status:    http.StatusBadRequest,
			body:      `{"code":"INVALID_REQUEST","message":"bad filter"}`,
			attempts:  3,
			wantKind:  rpcerr.ClientError,
			wantCalls: 1,
		},
		{
			name:      "unauthorized is a credential failure",
			status:    http.StatusUnauthorized,
			attempts:  3,
			wantKind:  rpcerr.InvalidCredential,
			wantCalls: 1,
		},
		{
			name:      "post is not retried",
			status:    http.StatusBadGateway,
			method:    http.MethodPost,
			attempts:  3,
			wantKind:  rpcerr.ServerError,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := New(srv.URL, WithRetryPolicy(fastPolicy(tt.attempts)))
			require.NoError(t, err)

			err = c.Do(apiKeyContext(), &Request{Method: tt.method, Path: "/x"}, nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, rpcerr.KindOf(err))
			assert.Equal(t, tt.wantCalls, calls.Load())

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestClient_Do_DecodesErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "RESOURCE_NOT_FOUND", "message": "pipeline missing"})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	err = c.Do(apiKeyContext(), &Request{Path: "/x"}, nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "pipeline missing")
	assert.Contains(t, err.Error(), "RESOURCE_NOT_FOUND")
}

func TestClient_Do_NetworkFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(url, WithRetryPolicy(fastPolicy(2)))
	require.NoError(t, err)

	err = c.Do(apiKeyContext(), &Request{Path: "/x"}, nil)
	require.Error(t, err)
	assert.Equal(t, rpcerr.Network, rpcerr.KindOf(err))
}

func TestClient_Do_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(srv.URL, WithRetryPolicy(fastPolicy(1)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(apiKeyContext(), 20*time.Millisecond)
	defer cancel()

	err = c.Do(ctx, &Request{Path: "/slow"}, nil)
	require.Error(t, err)
	assert.Equal(t, rpcerr.Timeout, rpcerr.KindOf(err))
}

func TestClient_Do_RequiresSession(t *testing.T) {
	t.Parallel()

	c, err := New("https://app.harness.io")
	require.NoError(t, err)

	err = c.Do(context.Background(), &Request{Path: "/x"}, nil)
	assert.Equal(t, rpcerr.InvalidCredential, rpcerr.KindOf(err))
}

func TestClient_Do_UndecodableBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	var out map[string]any
	err = c.Do(apiKeyContext(), &Request{Path: "/x"}, &out)
	assert.Equal(t, rpcerr.InternalError, rpcerr.KindOf(err))
}

func TestClient_Do_ResponseTooLarge(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"SUCCESS","data":{"name":"pipeline"}}`))
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		limit   int64
		wantErr bool
	}{
		{name: "body within the limit", limit: 1024},
		{name: "body exactly at the limit", limit: 47},
		{name: "body over the limit", limit: 16, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(srv.URL, WithMaxResponseSize(tt.limit))
			require.NoError(t, err)

			var out map[string]any
			err = c.Do(apiKeyContext(), &Request{Path: "/x"}, &out)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "SUCCESS", out["status"])
				return
			}
			require.Error(t, err)
			assert.Equal(t, rpcerr.InternalError, rpcerr.KindOf(err))
			assert.Contains(t, err.Error(), "exceeds 16 bytes")
		})
	}
}

func TestNew_InvalidBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New("not a url")
	assert.Error(t, err)

	_, err = New("://bad")
	assert.Error(t, err)
}
