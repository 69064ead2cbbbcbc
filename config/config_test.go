package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"pkg.world.dev/world-engine/assert"

	"pkg.world.dev/world-engine/ecstore/config"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Load("")
	assert.NilError(t, err)
	assert.Equal(t, config.Config{
		Namespace:         0,
		LogLevel:          "info",
		LogPretty:         false,
		RedisAddress:      "localhost:6379",
		RedisPassword:     "",
		ReplicationKey:    "ecstore",
		MaxLoggedWarnings: 20,
		ValueCacheBytes:   0,
		StatsdAddress:     "",
		DebugAddress:      ":4040",
	}, cfg)
}

func TestFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ecstore.toml")
	contents := `
namespace = 3
log_level = "debug"
replication_key = "from-file"
value_cache_bytes = 1048576
`
	assert.NilError(t, os.WriteFile(path, []byte(contents), 0o600))
	t.Setenv("ECSTORE_REPLICATION_KEY", "from-env")
	t.Setenv("ECSTORE_LOG_PRETTY", "true")

	cfg, err := config.Load(path)
	assert.NilError(t, err)
	assert.Equal(t, uint8(3), cfg.Namespace)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "from-env", cfg.ReplicationKey)
	assert.Equal(t, true, cfg.LogPretty)
	assert.Equal(t, 1048576, cfg.ValueCacheBytes)
	assert.Equal(t, zerolog.DebugLevel, cfg.Logger().GetLevel())
}

func TestValidate(t *testing.T) {
	bad := []func(*config.Config){
		func(c *config.Config) { c.LogLevel = "loud" },
		func(c *config.Config) { c.ValueCacheBytes = -1 },
		func(c *config.Config) { c.MaxLoggedWarnings = -2 },
		func(c *config.Config) { c.ReplicationKey = "" },
	}
	for _, mutate := range bad {
		cfg := config.DefaultConfig()
		mutate(&cfg)
		assert.Check(t, cfg.Validate() != nil)
	}
	assert.NilError(t, config.DefaultConfig().Validate())
}

func TestMissingFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorContains(t, err, "couldn't load config")
}
