package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultWorkbook, cfg.Workbook)
	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.False(t, cfg.Verbose)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calcflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workbook: pipelines/fleet.yaml
state_path: /var/lib/calcflow/runs.db
port: 9000
verbose: true
`), 0o644))

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "pipelines/fleet.yaml", cfg.Workbook)
	assert.Equal(t, "/var/lib/calcflow/runs.db", cfg.StatePath)
	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, path, GetConfigFileUsed())
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calcflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\n"), 0o644))

	t.Setenv("CALCFLOW_PORT", "9100")
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("CALCFLOW_PORT", "9100")
	t.Setenv("CALCFLOW_WORKBOOK", "from-env.yaml")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	flags.String("workbook", "", "")
	flags.String("state", "", "")
	require.NoError(t, flags.Parse([]string{"--port=9200", "--state=flag.db"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Port)
	// unchanged flags fall through to lower layers
	assert.Equal(t, "from-env.yaml", cfg.Workbook)
	// --state maps to state_path
	assert.Equal(t, "flag.db", cfg.StatePath)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}
