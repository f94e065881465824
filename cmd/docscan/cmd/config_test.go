package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/docscan/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docscan.yaml")

	output, err := executeCommand(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Configuration written to "+path)

	v := viper.New()
	v.SetConfigFile(path)
	cfg, err := config.NewLoaderWithViper(v).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Server.Port, cfg.Server.Port)

	_, err = executeCommand(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = executeCommand(t, "config", "init", path, "--force")
	require.NoError(t, err)

	output, err = executeCommand(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "scanner:")
	assert.Contains(t, output, "max_dimension:")
	assert.Contains(t, output, "rate_limit:")
}

func TestConfigPaths(t *testing.T) {
	output, err := executeCommand(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, output, "/etc/docscan")
}

func TestConfigInit_DefaultName(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = executeCommand(t, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "docscan.yaml"))
}
