// Package config loads the client configuration from an optional YAML file
// and BLACKSTORIES_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/blackstories-client/internal/domain"
)

// EnvPrefix prefixes every environment override. Nesting uses "__", so
// BLACKSTORIES_SERVER__BASE_URL sets server.base_url.
const EnvPrefix = "BLACKSTORIES_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Game      GameConfig      `koanf:"game"`
	Inverse   InverseConfig   `koanf:"inverse"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	BaseURL string `koanf:"base_url"`
	// Timeout bounds each exchange; zero leaves streams unbounded.
	Timeout time.Duration `koanf:"timeout"`
	APIKey  string        `koanf:"api_key"`
}

type GameConfig struct {
	Mode            string `koanf:"mode"`
	Difficulty      string `koanf:"difficulty"`
	NarratorModel   string `koanf:"narrator_model"`
	DetectiveModel  string `koanf:"detective_model"`
	DetectiveModel2 string `koanf:"detective_model_2"`
	VisionaryModel  string `koanf:"visionary_model"`
	SkepticModel    string `koanf:"skeptic_model"`
	LeaderModel     string `koanf:"leader_model"`
	SessionID       string `koanf:"session_id"`
}

type InverseConfig struct {
	Answers []string `koanf:"answers"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // memory, sqlite, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Output      string `koanf:"output"` // span file; empty writes to stderr
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

var defaults = map[string]any{
	"server.base_url":        "http://localhost:5000",
	"server.timeout":         "0s",
	"game.mode":              string(domain.ModeSingle),
	"game.difficulty":        "media",
	"inverse.answers":        []string{"Sí", "No", "Irrelevante", "¡Correcto!"},
	"storage.type":           "memory",
	"storage.sqlite.path":    "blackstories.db",
	"telemetry.service_name": "blackstories-client",
	"log.level":              "info",
	"log.format":             "json",
}

// Load reads path if it exists, then environment overrides, then defaults.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// A missing file is fine; env vars and defaults still apply
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
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

	cfg.Server.APIKey = substituteEnvVars(cfg.Server.APIKey)

	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		return errors.New("server.base_url is required")
	}
	if _, err := domain.ParseMode(c.Game.Mode); err != nil {
		return fmt.Errorf("game.mode: %w", err)
	}
	switch c.Storage.Type {
	case "memory", "none":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("storage.type: unknown storage type %q", c.Storage.Type)
	}
	if c.Server.Timeout < 0 {
		return errors.New("server.timeout must not be negative")
	}
	return nil
}

// StartParams returns the model selection for a new game.
func (c *Config) StartParams() domain.StartParams {
	return domain.StartParams{
		Difficulty:      c.Game.Difficulty,
		NarratorModel:   c.Game.NarratorModel,
		DetectiveModel:  c.Game.DetectiveModel,
		DetectiveModel2: c.Game.DetectiveModel2,
		VisionaryModel:  c.Game.VisionaryModel,
		SkepticModel:    c.Game.SkepticModel,
		LeaderModel:     c.Game.LeaderModel,
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
