package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInitializeFromFile verifies that an explicit file overrides defaults and flags override the file.
func TestInitializeFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	content := `server:
  port: 1700
convert:
  workers: 2
  output_dir: /tmp/out
log:
  level: warn
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("log-format", "", "")
	flags.String("plugin-path", "plugins", "")
	require.NoError(t, flags.Parse([]string{"--log-level=debug"}))

	require.NoError(t, Initialize(cfgFile, flags))

	cfg := Get()
	assert.Equal(t, 1700, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 2, cfg.Convert.Workers)
	assert.Equal(t, "/tmp/out", cfg.Convert.OutputDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "plugins", cfg.Plugin.Path)
	assert.NotNil(t, GetViper())
}

// TestInitializeEnvironment verifies that environment variables override defaults.
func TestInitializeEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("EBOOKCONV_SERVER_PORT", "1800")

	require.NoError(t, Initialize("", nil))
	assert.Equal(t, 1800, Get().Server.Port)

	_, err := os.Stat(filepath.Join(os.Getenv("HOME"), ".ebookconv", "config.yaml"))
	assert.NoError(t, err, "default config file should be generated")
}
