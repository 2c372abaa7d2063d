package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/client"
	"github.com/harness/mcp-server/internal/mcp"
	"github.com/harness/mcp-server/internal/tools"
	"github.com/harness/mcp-server/internal/toolsets"
	"github.com/harness/mcp-server/internal/versions"
	"github.com/harness/mcp-server/pkg/config"
)

const (
	defaultGracefulTimeout = 30 * time.Second
	defaultTransport       = transportStdio
	defaultWriteTimeout    = 15 * time.Second
	// writeTimeoutMargin leaves time to encode a result after a tool
	// invocation has used its whole timeout
	writeTimeoutMargin     = 15 * time.Second
)

// Transport modes
const (
	transportStdio    = "stdio"
	transportHTTP     = "http"
	transportInternal = "internal"
)

// ServeCmd returns the serve command for the MCP server
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP (Model Context Protocol) server to give AI assistants access
to the Harness platform through MCP tools.

Transport modes:
- stdio: newline-delimited JSON-RPC on stdin/stdout (default)
- http: JSON-RPC over HTTP, authenticated with the x-api-key header
- internal: loopback-only HTTP for service-to-service calls with bearer tokens

Every setting can also be given in the configuration file (--config) or as a
HARNESS_* environment variable, e.g. HARNESS_API_KEY.`,
		RunE: runServe,
	}

	// Define flags
	cmd.Flags().String("transport", defaultTransport, "Transport mode: stdio, http or internal")
	cmd.Flags().String("address", "", "Address to listen on (http mode)")
	cmd.Flags().String("internal-address", "", "Loopback address to listen on (internal mode)")
	cmd.Flags().String("path", "", "JSON-RPC endpoint path (http and internal modes)")

	// Bind flags to viper
	_ = viper.BindPFlag("transport", cmd.Flags().Lookup("transport"))
	_ = viper.BindPFlag(keyHTTPAddress, cmd.Flags().Lookup("address"))
	_ = viper.BindPFlag(keyInternalAddress, cmd.Flags().Lookup("internal-address"))
	_ = viper.BindPFlag(keyHTTPPath, cmd.Flags().Lookup("path"))

	return cmd
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	transportMode := viper.GetString("transport")
	if err := checkTransportMode(transportMode, cfg); err != nil {
		return err
	}

	transport, err := buildTransport(cfg)
	if err != nil {
		return err
	}

	switch transportMode {
	case transportStdio:
		return runStdioMode(ctx, transport)
	case transportHTTP:
		return runHTTPMode(ctx, newHTTPServer(cfg.HTTP.Address, transport.Handler(), cfg.ToolTimeout))
	default:
		return runHTTPMode(ctx, newHTTPServer(cfg.Internal.Address, transport.InternalHandler(), cfg.ToolTimeout))
	}
}

// checkTransportMode pairs each transport with the credential mode it
// serves. stdio authenticates with the configured API key, so it needs the
// API key resolver. The internal endpoint must never be reachable from other
// hosts.
func checkTransportMode(transportMode string, cfg *config.Config) error {
	switch transportMode {
	case transportStdio:
		if cfg.Mode != config.ModeExternal {
			return fmt.Errorf("stdio transport requires mode %q, got %q", config.ModeExternal, cfg.Mode)
		}
		return nil
	case transportHTTP:
		if cfg.Mode != config.ModeExternal {
			return fmt.Errorf("http transport requires mode %q, got %q", config.ModeExternal, cfg.Mode)
		}
		return nil
	case transportInternal:
		if cfg.Mode != config.ModeInternal {
			return fmt.Errorf("internal transport requires mode %q, got %q", config.ModeInternal, cfg.Mode)
		}
		return mcp.ValidateLoopbackAddress(cfg.Internal.Address)
	default:
		return fmt.Errorf("unsupported transport mode: %s (use 'stdio', 'http' or 'internal')", transportMode)
	}
}

// buildRegistry assembles the enabled toolsets into a frozen registry.
func buildRegistry(cfg *config.Config, caller client.Caller, baseURL string) (*toolsets.Registry, error) {
	builder := toolsets.NewBuilder(cfg.ReadOnly).
		Enable(cfg.Toolsets...).
		WithTimeout(cfg.ToolTimeout)
	for _, ts := range tools.DefaultToolsets(caller, baseURL) {
		builder.AddToolset(ts)
	}

	registry, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build tool registry: %w", err)
	}
	return registry, nil
}

// buildTransport wires the backend client, registry, resolver and server.
func buildTransport(cfg *config.Config) (*mcp.Transport, error) {
	backend, err := client.New(cfg.BaseURL, client.WithRetryPolicy(client.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		Multiplier:  cfg.Retry.Multiplier,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	registry, err := buildRegistry(cfg, backend, backend.BaseURL())
	if err != nil {
		return nil, err
	}
	logger.Infof("Enabled %d tools (read-only: %t)", len(registry.List()), registry.ReadOnly())

	resolver, err := auth.NewResolver(cfg.Mode.String(), []byte(cfg.BearerSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to create credential resolver: %w", err)
	}

	server := mcp.NewServer(registry, resolver,
		mcp.WithDefaultScope(cfg.DefaultOrgID, cfg.DefaultProjectID),
		mcp.WithServerInfo(mcp.DefaultServerName, versions.GetVersionInfo().Version),
	)

	return mcp.NewTransport(server,
		mcp.WithCredential(cfg.APIKey),
		mcp.WithPath(cfg.HTTP.Path),
	), nil
}

func runStdioMode(ctx context.Context, transport *mcp.Transport) error {
	logger.Info("Starting MCP server in stdio mode")

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Run stdio transport in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- transport.ServeStdio(ctx, os.Stdin, os.Stdout)
	}()

	// Wait for either completion or interrupt
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("stdio transport error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		logger.Infof("Received signal %v, shutting down", sig)
		cancel()
		// The reader may stay blocked on stdin, so do not wait for it
		// past the grace period
		select {
		case err := <-errChan:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case <-time.After(defaultGracefulTimeout):
			return fmt.Errorf("shutdown timeout exceeded")
		}
	}
}

// newHTTPServer creates the HTTP server. The write timeout outlasts the tool
// timeout so a timed out invocation still gets its result delivered; without
// a tool timeout writes are not bounded either.
func newHTTPServer(address string, handler http.Handler, toolTimeout time.Duration) *http.Server {
	writeTimeout := defaultWriteTimeout
	switch {
	case toolTimeout <= 0:
		writeTimeout = 0
	case toolTimeout+writeTimeoutMargin > writeTimeout:
		writeTimeout = toolTimeout + writeTimeoutMargin
	}

	return &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func runHTTPMode(ctx context.Context, server *http.Server) error {
	address := server.Addr
	logger.Infof("Starting MCP server in HTTP mode on %s", address)

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infof("MCP server listening on %s", address)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Infof("Received signal %v, shutting down gracefully", sig)

		// Create shutdown context with timeout
		shutdownCtx, cancel := context.WithTimeout(ctx, defaultGracefulTimeout)
		defer cancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("MCP server stopped gracefully")
		return nil
	}
}
