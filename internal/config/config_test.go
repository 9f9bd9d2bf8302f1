package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, ".local", "share"))
	t.Setenv("THREADLINE_CONFIG", "")
	t.Setenv("THREADLINE_CONFIG_CONTENT", "")
	t.Setenv("THREADLINE_AUTH_SECRET", "")
	t.Setenv("THREADLINE_FORCE_LOGIN", "")
	t.Setenv("THREADLINE_FILES_DIR", "")
	t.Setenv("THREADLINE_PORT", "")
	return tmpDir
}

func TestLoadProjectJSONC(t *testing.T) {
	tmpDir := isolateEnv(t)

	jsonConfig := `{
		// comments are allowed
		"server": {"port": 9090},
		"auth": {
			"forceLogin": true,
			"oauth": {
				"github": {"clientId": "abc", "clientSecret": "def"}
			}
		},
		"ui": {"defaultTheme": "light"}
	}`

	configPath := filepath.Join(tmpDir, "threadline.jsonc")
	require.NoError(t, os.WriteFile(configPath, []byte(jsonConfig), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Auth.ForceLogin)
	assert.Equal(t, "light", cfg.UI.DefaultTheme)
	require.Contains(t, cfg.Auth.OAuth, "github")
	assert.True(t, cfg.Auth.OAuth["github"].Configured())
	assert.True(t, cfg.Auth.OAuth["github"].IsEnabled())
}

func TestLoadYAML(t *testing.T) {
	tmpDir := isolateEnv(t)

	yamlConfig := `
server:
  port: 7070
files:
  directory: /var/lib/threadline/files
tools:
  search:
    type: local
    command: search-server
`
	configPath := filepath.Join(tmpDir, "threadline.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yamlConfig), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/var/lib/threadline/files", cfg.Files.Directory)
	require.Contains(t, cfg.Tools, "search")
	assert.Equal(t, "search-server", cfg.Tools["search"].Command)
}

func TestEnvInterpolation(t *testing.T) {
	tmpDir := isolateEnv(t)
	t.Setenv("TEST_OAUTH_SECRET", "from-env")

	jsonConfig := `{
		"auth": {
			"oauth": {
				"google": {"clientId": "gid", "clientSecret": "{env:TEST_OAUTH_SECRET}"}
			}
		}
	}`
	configPath := filepath.Join(tmpDir, "threadline.json")
	require.NoError(t, os.WriteFile(configPath, []byte(jsonConfig), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.OAuth["google"].ClientSecret)
}

func TestEnvOverrides(t *testing.T) {
	tmpDir := isolateEnv(t)
	t.Setenv("THREADLINE_AUTH_SECRET", "s3cret")
	t.Setenv("THREADLINE_PORT", "1234")
	t.Setenv("THREADLINE_FORCE_LOGIN", "1")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, 1234, cfg.Server.Port)
	assert.True(t, cfg.Auth.ForceLogin)
}

func TestInlineConfigContent(t *testing.T) {
	tmpDir := isolateEnv(t)
	t.Setenv("THREADLINE_CONFIG_CONTENT", `{"server":{"cleanupDelaySeconds":5}}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Server.CleanupDelaySeconds)
}

func TestDefaults(t *testing.T) {
	tmpDir := isolateEnv(t)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Server.CleanupDelaySeconds)
	assert.Equal(t, 15*24*60*60, cfg.Auth.TokenTTLSeconds)
	assert.NotEmpty(t, cfg.Files.Directory)
}

func TestOAuthProviderEnabled(t *testing.T) {
	tmpDir := isolateEnv(t)

	jsonConfig := `{
		"auth": {
			"oauth": {
				"github": {"clientId": "a", "clientSecret": "b", "enabled": false},
				"google": {"clientId": "a"}
			}
		}
	}`
	configPath := filepath.Join(tmpDir, "threadline.json")
	require.NoError(t, os.WriteFile(configPath, []byte(jsonConfig), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.True(t, cfg.Auth.OAuth["github"].Configured())
	assert.False(t, cfg.Auth.OAuth["github"].IsEnabled())
	assert.False(t, cfg.Auth.OAuth["google"].Configured())
}

func TestProjectOverridesGlobal(t *testing.T) {
	tmpDir := isolateEnv(t)

	globalDir := filepath.Join(tmpDir, ".config", "threadline")
	require.NoError(t, os.MkdirAll(globalDir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(globalDir, "threadline.json"),
		[]byte(`{"server":{"port":1111},"ui":{"defaultTheme":"light"}}`), 0644))

	projectDir := filepath.Join(tmpDir, "project")
	require.NoError(t, os.MkdirAll(projectDir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(projectDir, "threadline.json"),
		[]byte(`{"server":{"port":2222}}`), 0644))

	cfg, err := Load(projectDir)
	require.NoError(t, err)

	assert.Equal(t, 2222, cfg.Server.Port)
	// Untouched fields fall through from the global file
	assert.Equal(t, "light", cfg.UI.DefaultTheme)
}
