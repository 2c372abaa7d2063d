package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harness/mcp-server/internal/auth"
)

const defaultTokenTTL = time.Hour

// TokenCmd returns the token command
func TokenCmd() *cobra.Command {
	return newTokenCmd(viper.GetViper())
}

func newTokenCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the internal transport",
		Long: `Mint a bearer token signed with the configured bearer secret. Internal
services present it in the Authorization header of requests to the internal
transport.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(cmd, v)
		},
	}

	cmd.Flags().String("subject", "", "Subject the token is issued to (required)")
	cmd.Flags().String("account", "", "Account identifier (required)")
	cmd.Flags().String("org", "", "Organization identifier")
	cmd.Flags().String("project", "", "Project identifier (requires --org)")
	cmd.Flags().String("name", "", "Display name of the subject")
	cmd.Flags().String("type", string(auth.PrincipalService), "Principal type: SERVICE or USER")
	cmd.Flags().Duration("ttl", defaultTokenTTL, "Validity of the token")

	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runToken(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	if cfg.BearerSecret == "" {
		return errors.New("a bearer secret is required to mint tokens (set bearer_secret or HARNESS_BEARER_SECRET)")
	}

	flags := cmd.Flags()
	subject, _ := flags.GetString("subject")
	account, _ := flags.GetString("account")
	org, _ := flags.GetString("org")
	project, _ := flags.GetString("project")
	name, _ := flags.GetString("name")
	kindFlag, _ := flags.GetString("type")
	ttl, _ := flags.GetDuration("ttl")

	kind, err := parsePrincipalKind(kindFlag)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	token, err := auth.NewBearerResolver([]byte(cfg.BearerSecret)).Issue(auth.Principal{
		SubjectID:   subject,
		AccountID:   account,
		OrgID:       org,
		ProjectID:   project,
		DisplayName: name,
		Kind:        kind,
	}, ttl)
	if err != nil {
		return fmt.Errorf("failed to mint token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func parsePrincipalKind(value string) (auth.PrincipalKind, error) {
	switch kind := auth.PrincipalKind(strings.ToUpper(value)); kind {
	case auth.PrincipalService, auth.PrincipalUser:
		return kind, nil
	default:
		return "", fmt.Errorf("unsupported principal type %q (use SERVICE or USER)", value)
	}
}
