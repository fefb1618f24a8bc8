package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the service reads.
const EnvPrefix = "SCRY"

var defaults = map[string]any{
	"server.port":             8080,
	"server.log_level":        "info",
	"server.shutdown_timeout": "15s",

	"database.url":            "",
	"database.max_open_conns": 10,
	"database.run_migrations": false,

	"auth.jwt_secret": "",
	"auth.issuer":     "",

	"llm.provider":          "gemini",
	"llm.gemini_api_key":    "",
	"llm.gemini_model":      "gemini-2.0-flash",
	"llm.anthropic_api_key": "",
	"llm.anthropic_model":   "claude-sonnet-4-5",
	"llm.max_tokens":        8192,

	"generation.max_concurrent_per_project": 3,

	"redis.enabled":        false,
	"redis.addr":           "",
	"redis.password":       "",
	"redis.db":             0,
	"redis.channel_prefix": "scry:notifications",

	"telemetry.enabled":         false,
	"telemetry.export_interval": "30s",
}

// Load configuration from defaults, an optional config.yaml in the working
// directory, and environment variables. Environment variables take precedence
// over values from the config file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	return load(v)
}

// LoadFile is like Load but reads the given config file, which must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
