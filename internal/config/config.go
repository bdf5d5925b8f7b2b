// Package config loads engine configuration from an optional config.yaml
// and REPLAY_-prefixed environment variables, env taking precedence.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	ERPNext    ERPNextConfig    `koanf:"erpnext"`
	Anthropic  AnthropicConfig  `koanf:"anthropic"`
	Resolution ResolutionConfig `koanf:"resolution"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	// Type selects the incident store: sqlite or memory.
	Type   string       `koanf:"type"`
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type ERPNextConfig struct {
	BaseURL string `koanf:"base_url"`
	// APIToken is the "key:secret" pair for the token auth scheme.
	APIToken       string `koanf:"api_token"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

type AnthropicConfig struct {
	APIKey         string `koanf:"api_key"`
	Model          string `koanf:"model"`
	MaxTokens      int    `koanf:"max_tokens"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

type ResolutionConfig struct {
	// DefaultMode is used when a resolve call does not name a mode:
	// "rule" or "ai".
	DefaultMode string `koanf:"default_mode"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load() (*Config, error) {
	k := koanf.New(".")

	// Optional config.yaml; env vars override it.
	if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("REPLAY_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "REPLAY_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	defaults := map[string]any{
		"server.port":               8080,
		"storage.type":              "sqlite",
		"storage.sqlite.path":       "incidents.db",
		"erpnext.timeout_seconds":   10,
		"anthropic.model":           "claude-sonnet-4-20250514",
		"anthropic.max_tokens":      2048,
		"anthropic.timeout_seconds": 30,
		"resolution.default_mode":   "rule",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Secrets in config.yaml may reference env vars as ${VAR_NAME}.
	cfg.ERPNext.APIToken = substituteEnvVars(cfg.ERPNext.APIToken)
	cfg.Anthropic.APIKey = substituteEnvVars(cfg.Anthropic.APIKey)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
