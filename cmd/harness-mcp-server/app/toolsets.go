package app

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harness/mcp-server/internal/client"
)

// ToolsetsCmd returns the toolsets command
func ToolsetsCmd() *cobra.Command {
	return newToolsetsCmd(viper.GetViper())
}

func newToolsetsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolsets",
		Short: "List toolsets and their tools",
		Long: `List every toolset with its tools, showing which ones the current
configuration enables. Tools that change state are hidden in read-only mode.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			return runToolsets(cmd, v, jsonOutput)
		},
	}

	cmd.Flags().Bool("json", false, "Output toolsets in JSON format")

	return cmd
}

func runToolsets(cmd *cobra.Command, v *viper.Viper, jsonOutput bool) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	backend, err := client.New(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}
	registry, err := buildRegistry(cfg, backend, backend.BaseURL())
	if err != nil {
		return err
	}

	infos := registry.Toolsets()
	out := cmd.OutOrStdout()

	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOOLSET\tENABLED\tREAD-ONLY\tTOOLS")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%t\t%t\t%s\n", info.Name, info.Enabled, info.ReadOnly, strings.Join(info.Tools, ", "))
	}
	return w.Flush()
}
