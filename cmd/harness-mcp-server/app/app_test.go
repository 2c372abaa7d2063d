package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harness/mcp-server/internal/auth"
	"github.com/harness/mcp-server/internal/toolsets"
	"github.com/harness/mcp-server/pkg/config"
)

func TestSplitList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil", input: nil, want: nil},
		{name: "single", input: []string{"pipelines"}, want: []string{"pipelines"}},
		{name: "comma separated", input: []string{"pipelines, services"}, want: []string{"pipelines", "services"}},
		{name: "mixed", input: []string{"pipelines,", "services,connectors"}, want: []string{"pipelines", "services", "connectors"}},
		{name: "blank entries", input: []string{" , "}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, splitList(tt.input))
		})
	}
}

func TestOverlay(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set(keyBaseURL, "https://harness.example.com")
	v.Set(keyMode, "internal")
	v.Set(keyBearerSecret, "s3cret")
	v.Set(keyDefaultOrgID, "default")
	v.Set(keyDefaultProjectID, "demo")
	v.Set(keyToolsets, "pipelines,services")
	v.Set(keyReadOnly, true)
	v.Set(keyToolTimeout, "45s")
	v.Set(keyHTTPPath, "/rpc")
	v.Set(keyInternalAddress, "127.0.0.1:9000")

	cfg := config.Default()
	overlay(v, cfg)

	assert.Equal(t, "https://harness.example.com", cfg.BaseURL)
	assert.Equal(t, config.ModeInternal, cfg.Mode)
	assert.Equal(t, "s3cret", cfg.BearerSecret)
	assert.Equal(t, "default", cfg.DefaultOrgID)
	assert.Equal(t, "demo", cfg.DefaultProjectID)
	assert.Equal(t, []string{"pipelines", "services"}, cfg.Toolsets)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, 45*time.Second, cfg.ToolTimeout)
	assert.Equal(t, "/rpc", cfg.HTTP.Path)
	assert.Equal(t, "127.0.0.1:9000", cfg.Internal.Address)

	// keys that were never set keep their defaults
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Empty(t, cfg.APIKey)
}

func TestLoadConfig_FileThenOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_key: pat.acct.token.secret
default_org_id: default
toolsets: [pipelines]
`), 0600))

	v := viper.New()
	v.Set(keyConfig, path)
	v.Set(keyToolsets, []string{"services"})

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "pat.acct.token.secret", cfg.APIKey)
	assert.Equal(t, "default", cfg.DefaultOrgID)
	assert.Equal(t, []string{"services"}, cfg.Toolsets)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set(keyMode, "internal")

	_, err := loadConfig(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bearer_secret is required")
}

func TestBindEnv(t *testing.T) {
	t.Setenv("HARNESS_API_KEY", "pat.acct.env.secret")
	t.Setenv("HARNESS_HTTP_ADDRESS", ":9090")
	t.Setenv("HARNESS_TOOLSETS", "connectors,dashboards")

	v := viper.New()
	BindEnv(v)

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "pat.acct.env.secret", cfg.APIKey)
	assert.Equal(t, ":9090", cfg.HTTP.Address)
	assert.Equal(t, []string{"connectors", "dashboards"}, cfg.Toolsets)
}

func TestCheckTransportMode(t *testing.T) {
	t.Parallel()

	external := config.Default()
	internal := config.Default()
	internal.Mode = config.ModeInternal
	exposed := config.Default()
	exposed.Mode = config.ModeInternal
	exposed.Internal.Address = "0.0.0.0:8081"

	tests := []struct {
		name      string
		transport string
		cfg       *config.Config
		wantErr   string
	}{
		{name: "stdio external", transport: transportStdio, cfg: external},
		{name: "stdio internal", transport: transportStdio, cfg: internal, wantErr: "stdio transport requires mode"},
		{name: "http external", transport: transportHTTP, cfg: external},
		{name: "http internal", transport: transportHTTP, cfg: internal, wantErr: "http transport requires mode"},
		{name: "internal internal", transport: transportInternal, cfg: internal},
		{name: "internal external", transport: transportInternal, cfg: external, wantErr: "internal transport requires mode"},
		{name: "internal on a public address", transport: transportInternal, cfg: exposed, wantErr: "not a loopback address"},
		{name: "unknown", transport: "grpc", cfg: external, wantErr: "unsupported transport mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := checkTransportMode(tt.transport, tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewHTTPServer_WriteTimeoutOutlastsToolTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		toolTimeout      time.Duration
		wantWriteTimeout time.Duration
	}{
		{name: "default tool timeout", toolTimeout: config.Default().ToolTimeout, wantWriteTimeout: 2*time.Minute + writeTimeoutMargin},
		{name: "short tool timeout", toolTimeout: time.Second, wantWriteTimeout: time.Second + writeTimeoutMargin},
		{name: "no tool timeout", toolTimeout: 0, wantWriteTimeout: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newHTTPServer(":0", http.NotFoundHandler(), tt.toolTimeout)
			assert.Equal(t, tt.wantWriteTimeout, server.WriteTimeout)
			if tt.toolTimeout > 0 {
				assert.Greater(t, server.WriteTimeout, tt.toolTimeout)
			}
			assert.Equal(t, 5*time.Second, server.ReadHeaderTimeout)
		})
	}
}

func TestBuildTransport(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.APIKey = "pat.acct.token.secret"
	transport, err := buildTransport(cfg)
	require.NoError(t, err)
	assert.NotNil(t, transport.Handler())

	cfg = config.Default()
	cfg.Toolsets = []string{"nope"}
	_, err = buildTransport(cfg)
	assert.ErrorIs(t, err, toolsets.ErrUnknownToolset)
}

func TestToolsetsCmd(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set(keyReadOnly, true)
	v.Set(keyToolsets, "services")

	cmd := newToolsetsCmd(v)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--json"})
	require.NoError(t, cmd.Execute())

	var infos []toolsets.ToolsetInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &infos))
	require.Len(t, infos, 5)

	byName := map[string]toolsets.ToolsetInfo{}
	for _, info := range infos {
		byName[info.Name] = info
	}
	services := byName["services"]
	assert.True(t, services.Enabled)
	assert.NotContains(t, services.Tools, "create_service")
	assert.False(t, byName["pipelines"].Enabled)
}

func TestToolsetsCmd_Table(t *testing.T) {
	t.Parallel()

	cmd := newToolsetsCmd(viper.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "TOOLSET"))
	assert.Contains(t, out.String(), "list_pipelines")
}

func TestTokenCmd(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set(keyBearerSecret, "shared-secret")

	cmd := newTokenCmd(v)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--subject", "ci-runner", "--account", "acct", "--org", "default", "--type", "user", "--ttl", "10m"})
	require.NoError(t, cmd.Execute())

	token := strings.TrimSpace(out.String())
	session, err := auth.NewBearerResolver([]byte("shared-secret")).Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "ci-runner", session.Principal.SubjectID)
	assert.Equal(t, "acct", session.Principal.AccountID)
	assert.Equal(t, "default", session.Principal.OrgID)
	assert.Equal(t, auth.PrincipalUser, session.Principal.Kind)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), session.ExpiresAt, time.Minute)
}

func TestTokenCmd_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		secret  string
		args    []string
		wantErr string
	}{
		{
			name:    "no secret",
			args:    []string{"--subject", "s", "--account", "a"},
			wantErr: "bearer secret is required",
		},
		{
			name:    "missing subject",
			secret:  "k",
			args:    []string{"--account", "a"},
			wantErr: "subject",
		},
		{
			name:    "unknown type",
			secret:  "k",
			args:    []string{"--subject", "s", "--account", "a", "--type", "robot"},
			wantErr: "unsupported principal type",
		},
		{
			name:    "non-positive ttl",
			secret:  "k",
			args:    []string{"--subject", "s", "--account", "a", "--ttl", "0s"},
			wantErr: "ttl must be positive",
		},
		{
			name:    "project without org",
			secret:  "k",
			args:    []string{"--subject", "s", "--account", "a", "--project", "p"},
			wantErr: "requires an org id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := viper.New()
			if tt.secret != "" {
				v.Set(keyBearerSecret, tt.secret)
			}
			cmd := newTokenCmd(v)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
