package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestLoader() *Loader { return NewLoaderWithViper(viper.New()) }

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docscan.yaml")
	content := `
log_level: debug
scanner:
  max_dimension: 640
  canny_high: 120
  debug_stage: content_removed
rectify:
  aspect: din476
  color_profile: grayscale
server:
  port: 9090
  rate_limit:
    enabled: true
    requests_per_minute: 30
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	l := newTestLoader()
	cfg, err := l.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.GetConfigFileUsed())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 640, cfg.Scanner.MaxDimension)
	assert.InDelta(t, 120, cfg.Scanner.CannyHigh, 0)
	assert.InDelta(t, 30, cfg.Scanner.CannyLow, 0, "unset keys keep defaults")
	assert.Equal(t, "content_removed", cfg.Scanner.DebugStage)
	assert.Equal(t, "din476", cfg.Rectify.Aspect)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 30, cfg.Server.RateLimit.RequestsPerMinute)
}

func TestLoad_SearchPathFindsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docscan.yaml"), []byte("verbose: true\n"), 0o600))

	l := newTestLoader()
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
	assert.Contains(t, l.GetConfigFileUsed(), "docscan.yaml")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DOCSCAN_SERVER_PORT", "7070")
	t.Setenv("DOCSCAN_SCANNER_MAX_DIMENSION", "512")
	t.Setenv("DOCSCAN_RECTIFY_COLOR_PROFILE", "bw")

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 512, cfg.Scanner.MaxDimension)
	assert.Equal(t, "bw", cfg.Rectify.ColorProfile)
}

func TestLoad_Errors(t *testing.T) {
	_, err := newTestLoader().LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("scanner: [unclosed"), 0o600))
	_, err = newTestLoader().LoadWithFile(bad)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("log_level: chatty\n"), 0o600))
	_, err = newTestLoader().LoadWithFile(invalid)
	require.ErrorContains(t, err, "validation failed")

	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docscan.yaml"), []byte("log_level: chatty\n"), 0o600))
	cfg, err := newTestLoader().LoadWithoutValidation()
	require.NoError(t, err)
	assert.Equal(t, "chatty", cfg.LogLevel)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := newTestLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestToYAML_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rectify.Aspect = "ansi_letter"
	out, err := ToYAML(&cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "aspect: ansi_letter")
	assert.Contains(t, out, "requests_per_minute: 120")

	var back Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &back))
	assert.Equal(t, cfg, back)
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join("/xdg", "docscan"))
	assert.Equal(t, "/etc/docscan", paths[len(paths)-1])
}
