package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": 8080, "host": "0.0.0.0"},
		"paths": {"actions": "./actions", "flux": "./flux"},
		"logging": {"level": "info"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "./actions", cfg.Paths.Actions)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": 8080},
		"paths": {"actions": "./actions", "flux": "./flux"},
		"logging": {"level": "verbose"}
	}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingPaths(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": 8080},
		"paths": {"actions": "./actions"},
		"logging": {"level": "info"}
	}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvSubstitutionValueMode(t *testing.T) {
	t.Setenv("FLUX_PORT", "9090")
	path := writeConfig(t, `{
		"server": {"port": "${FLUX_PORT}"},
		"paths": {"actions": "./actions", "flux": "./flux"},
		"logging": {"level": "info"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadEnvSubstitutionStringMode(t *testing.T) {
	t.Setenv("FLUX_HOST", "api.internal")
	path := writeConfig(t, `{
		"server": {"port": 8080, "host": "svc.${FLUX_HOST}.local"},
		"paths": {"actions": "./actions", "flux": "./flux"},
		"logging": {"level": "info"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "svc.api.internal.local", cfg.Server.Host)
}

func TestLoadPluginsCaptureTypeAndOptions(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": 8080},
		"paths": {"actions": "./actions", "flux": "./flux"},
		"logging": {"level": "info"},
		"plugins": {
			"cache": {"type": "redis", "addr": "localhost:6379"}
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Contains(t, cfg.Plugins, "cache")
	assert.Equal(t, "redis", cfg.Plugins["cache"].Type)
	assert.Equal(t, "localhost:6379", cfg.Plugins["cache"].Options["addr"])
}
