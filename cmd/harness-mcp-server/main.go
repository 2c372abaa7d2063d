// Package main is the entry point for the Harness MCP server CLI application
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stacklok/toolhive/pkg/logger"

	"github.com/harness/mcp-server/cmd/harness-mcp-server/app"
	"github.com/harness/mcp-server/internal/versions"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "harness-mcp-server",
		Short: "Harness MCP Server",
		Long: `Harness MCP Server exposes the Harness platform to AI assistants through
the MCP (Model Context Protocol). Tools are grouped into toolsets that can be
enabled individually and restricted to read-only access.`,
		Version: versions.GetVersionInfo().Version,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	// Configuration flags are shared by every subcommand that loads config
	app.AddConfigFlags(rootCmd.PersistentFlags(), viper.GetViper())
	app.BindEnv(viper.GetViper())

	// Add subcommands
	rootCmd.AddCommand(app.ServeCmd())
	rootCmd.AddCommand(app.VersionCmd())
	rootCmd.AddCommand(app.ToolsetsCmd())
	rootCmd.AddCommand(app.TokenCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("Command failed: %v", err)
		os.Exit(1)
	}
}
