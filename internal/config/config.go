package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth" validate:"required"`
	LLM        LLMConfig        `mapstructure:"llm" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL           string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns  int    `mapstructure:"max_open_conns" validate:"gte=0"`
	RunMigrations bool   `mapstructure:"run_migrations"`
}

// AuthConfig contains the settings used to verify project access tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	Issuer    string `mapstructure:"issuer"`
}

// LLMConfig selects and configures the language model backend.
type LLMConfig struct {
	Provider        string `mapstructure:"provider" validate:"required,oneof=gemini anthropic"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	GeminiModel     string `mapstructure:"gemini_model" validate:"required_if=Provider gemini"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key" validate:"required_if=Provider anthropic"`
	AnthropicModel  string `mapstructure:"anthropic_model" validate:"required_if=Provider anthropic"`
	MaxTokens       int    `mapstructure:"max_tokens" validate:"gt=0"`
}

// GenerationConfig contains orchestrator settings.
type GenerationConfig struct {
	MaxConcurrentPerProject int `mapstructure:"max_concurrent_per_project" validate:"gt=0,lte=64"`
}

// RedisConfig configures the optional Redis notification sink.
type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Addr          string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db" validate:"gte=0"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// TelemetryConfig configures task lifecycle metrics export.
type TelemetryConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ExportInterval time.Duration `mapstructure:"export_interval" validate:"gt=0"`
}
