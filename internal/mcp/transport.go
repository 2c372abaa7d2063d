package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stacklok/toolhive/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/rpcerr"
)

// DefaultPath is the HTTP endpoint that accepts JSON-RPC requests.
const DefaultPath = "/mcp"

// HeaderAPIKey carries the caller's API key on the HTTP transport.
const HeaderAPIKey = "x-api-key"

// maxBodySize bounds one request body or stdio line (1MB).
const maxBodySize = 1 << 20

// Transport feeds requests from stdio or HTTP into a Server.
type Transport struct {
	server     *Server
	credential string
	path       string
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithCredential sets the credential attached to stdio requests. HTTP
// callers always present their own.
func WithCredential(credential string) TransportOption {
	return func(t *Transport) {
		t.credential = credential
	}
}

// WithPath sets the JSON-RPC endpoint path.
func WithPath(path string) TransportOption {
	return func(t *Transport) {
		if path != "" {
			t.path = "/" + strings.TrimLeft(path, "/")
		}
	}
}

// NewTransport creates a new transport layer
func NewTransport(server *Server, opts ...TransportOption) *Transport {
	t := &Transport{
		server: server,
		path:   DefaultPath,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// handleMessage decodes and dispatches one raw message. The boolean is false
// for notifications, which get no reply.
func (t *Transport) handleMessage(ctx context.Context, data []byte) (JSONRPCResponse, bool) {
	req, err := DecodeRequest(data)
	if err != nil {
		logger.Warnf("Invalid request: %v", err)
		return NewErrorResponse(nil, err), true
	}
	resp := t.server.HandleRequest(ctx, *req)
	if req.IsNotification() {
		return resp, false
	}
	return resp, true
}

// ServeStdio reads one request per line from stdin and writes one response
// per line to stdout, strictly in order. A malformed or oversized line is
// answered with an error and the loop continues; only I/O failures end it.
func (t *Transport) ServeStdio(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	reader := bufio.NewReaderSize(stdin, 64*1024)
	encoder := json.NewEncoder(stdout)

	if t.credential != "" {
		ctx = auth.WithCredential(ctx, t.credential)
	}

	logger.Info("MCP server started in stdio mode")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, tooLong, readErr := readLine(reader)

		var (
			resp  JSONRPCResponse
			reply bool
		)
		switch {
		case tooLong:
			logger.Warnf("Discarded request line over %d bytes", maxBodySize)
			resp, reply = NewErrorResponse(nil, rpcerr.New(rpcerr.InvalidRequest, "request exceeds %d bytes", maxBodySize)), true
		case len(line) > 0:
			resp, reply = t.handleMessage(ctx, line)
		}

		if reply {
			if err := encoder.Encode(resp); err != nil {
				logger.Errorf("Failed to encode response: %v", err)
				return fmt.Errorf("failed to encode response: %w", err)
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read request: %w", readErr)
		}
	}
}

// readLine returns the next line with surrounding whitespace trimmed. A line
// longer than maxBodySize is consumed to its end and reported as tooLong.
// At end of input the final unterminated line is returned along with io.EOF.
func readLine(reader *bufio.Reader) (line []byte, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, readErr := reader.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, chunk...)
			// room for a trailing \r\n
			if len(buf) > maxBodySize+2 {
				tooLong = true
				buf = nil
			}
		}
		if errors.Is(readErr, bufio.ErrBufferFull) {
			continue
		}
		if tooLong {
			return nil, true, readErr
		}
		line = bytes.TrimSpace(buf)
		if len(line) > maxBodySize {
			return nil, true, readErr
		}
		return line, false, readErr
	}
}

// Handler returns the external HTTP handler. The credential is read from the
// x-api-key header; requests without one are rejected by the server.
func (t *Transport) Handler() http.Handler {
	return t.router(apiKeyCredential)
}

// InternalHandler returns the loopback HTTP handler for service-to-service
// calls. Requests without a bearer token are rejected with 401.
func (t *Transport) InternalHandler() http.Handler {
	return t.router(bearerCredential)
}

func (t *Transport) router(credentials func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.With(credentials).Post(t.path, t.handleRPC)

	return otelhttp.NewHandler(r, "mcp")
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleRPC serves one JSON-RPC request over HTTP. Notifications are
// acknowledged with 202 and no body.
func (t *Transport) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge,
				NewErrorResponse(nil, rpcerr.New(rpcerr.InvalidRequest, "request body exceeds %d bytes", maxBodySize)))
			return
		}
		logger.Errorf("Failed to read request body: %v", err)
		writeJSON(w, http.StatusBadRequest, NewErrorResponse(nil, rpcerr.Wrap(rpcerr.ParseError, err, "failed to read request")))
		return
	}

	resp, reply := t.handleMessage(r.Context(), body)
	if !reply {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func apiKeyCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if credential := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); credential != "" {
			r = r.WithContext(auth.WithCredential(r.Context(), credential))
		}
		next.ServeHTTP(w, r)
	})
}

func bearerCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or malformed bearer token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithCredential(r.Context(), token)))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ValidateLoopbackAddress rejects listen addresses that are reachable from
// other hosts.
func ValidateLoopbackAddress(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("address %q is not a loopback address", address)
	}
	return nil
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
