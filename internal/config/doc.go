// Package config loads and validates service configuration from defaults, an
// optional config.yaml file and SCRY_ prefixed environment variables.
package config
