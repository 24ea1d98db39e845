package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabouaram/staticd/internal/config"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "server.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	path := writeConfigFile(t, "port=9090\n")

	cfg, err := config.Load(path)
	require.Nil(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, config.Default().NumWorkers, cfg.NumWorkers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.conf"))
	require.NotNil(t, err)
}

func TestValidateRejectsOutOfRangeFields(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 0
	cfg.DocumentRoot = ""
	cfg.NumWorkers = 0

	err := cfg.Validate()
	require.NotNil(t, err)
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.Nil(t, config.Default().Validate())
}

func TestCloneIsIndependentValue(t *testing.T) {
	cfg := config.Default()
	clone := cfg.Clone()
	clone.Port = 1
	require.NotEqual(t, cfg.Port, clone.Port)
}
