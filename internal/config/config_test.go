package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "debug", cfg.Send.Level)
	assert.True(t, cfg.API.Enabled)

	result := cfg.Validate()
	assert.True(t, result.Valid, "defaults must validate cleanly")
}

func TestLoadConfig(t *testing.T) {
	t.Run("Missing optional file falls back to defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.Database.Type)
	})

	t.Run("Missing explicit file is an error", func(t *testing.T) {
		_, err := LoadConfig("/does/not/exist/lettera.conf")
		assert.Error(t, err)
	})

	t.Run("File values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lettera.conf")
		content := `
[database]
type = "postgres"
host = "db.internal"
username = "letters"
password = "secret"

[send]
level = "prod"

[lookup.applications]
base_url = "http://apps.internal"
timeout_seconds = 5
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "postgres", cfg.Database.Type)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, "prod", cfg.Send.Level)
		assert.Equal(t, "http://apps.internal", cfg.Lookup.Applications.BaseURL)
		assert.Equal(t, 5, cfg.Lookup.Applications.TimeoutSeconds)

		// untouched sections keep their defaults
		assert.Equal(t, "127.0.0.1:8080", cfg.API.ListenAddr)
	})

	t.Run("Invalid values rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lettera.conf")
		content := `
[send]
level = "staging"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "send.level")
	})

	t.Run("Malformed TOML rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lettera.conf")
		require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0644))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("Bad listen address", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.API.ListenAddr = "no-port"

		result := cfg.Validate()
		require.False(t, result.Valid)
		assert.Equal(t, "api.listen_addr", result.Errors[0].Field)
	})

	t.Run("Network database without host", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Database.Type = "mysql"

		result := cfg.Validate()
		assert.False(t, result.Valid)
	})

	t.Run("Cache host required when remote", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Cache.Enabled = true
		cfg.Cache.Type = "redis"

		result := cfg.Validate()
		assert.False(t, result.Valid)
	})
}

func TestCreateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lettera.conf")

	require.NoError(t, CreateDefaultConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Type)

	// Refuses to clobber an existing file
	assert.Error(t, CreateDefaultConfig(path))
}

func TestClientConfig(t *testing.T) {
	lc := LookupConfig{BaseURL: "http://apps.internal", TimeoutSeconds: 7}
	cc := lc.ClientConfig()
	assert.Equal(t, "http://apps.internal", cc.BaseURL)
	assert.Equal(t, "7s", cc.Timeout.String())
}
