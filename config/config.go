// Package config loads process configuration from an optional file, ECSTORE_ environment variables and
// defaults, in that order of precedence from last to first.
package config

import (
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const EnvPrefix = "ECSTORE"

type Config struct {
	// Namespace is the entity id namespace a world allocates from.
	Namespace uint8 `mapstructure:"namespace"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	RedisAddress   string `mapstructure:"redis_address"`
	RedisPassword  string `mapstructure:"redis_password"`
	ReplicationKey string `mapstructure:"replication_key"`

	MaxLoggedWarnings int `mapstructure:"max_logged_warnings"`
	// ValueCacheBytes sizes the snapshot value cache. Zero disables it.
	ValueCacheBytes int `mapstructure:"value_cache_bytes"`

	// StatsdAddress enables metrics when set.
	StatsdAddress string `mapstructure:"statsd_address"`
	DebugAddress  string `mapstructure:"debug_address"`
}

var defaults = map[string]any{
	"namespace":           0,
	"log_level":           "info",
	"log_pretty":          false,
	"redis_address":       "localhost:6379",
	"redis_password":      "",
	"replication_key":     "ecstore",
	"max_logged_warnings": 20, //nolint:gomnd // default cap
	"value_cache_bytes":   0,
	"statsd_address":      "",
	"debug_address":       ":4040",
}

func DefaultConfig() Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults alone always unmarshal.
		panic(err)
	}
	return cfg
}

// Load reads the config file at path (any format viper understands; skipped when path is empty), overlays
// ECSTORE_* environment variables and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, eris.Wrapf(err, "couldn't load config %q", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, eris.Wrap(err, "couldn't read config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return eris.Wrapf(err, "invalid log_level %q", c.LogLevel)
	}
	if c.MaxLoggedWarnings < -1 {
		return eris.Errorf("max_logged_warnings must be -1 (unlimited) or greater, got %d", c.MaxLoggedWarnings)
	}
	if c.ValueCacheBytes < 0 {
		return eris.Errorf("value_cache_bytes must not be negative, got %d", c.ValueCacheBytes)
	}
	if c.ReplicationKey == "" {
		return eris.New("replication_key must not be empty")
	}
	return nil
}

// Logger builds the process logger described by the config.
func (c Config) Logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stderr
	if c.LogPretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
