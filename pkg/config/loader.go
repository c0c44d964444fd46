package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Initialize loads, merges, and validates configuration. This is the
// primary entry point:
//
//  1. Load .env (if present) so secrets are available as environment vars.
//  2. Load an optional YAML file at path, with ${VAR} expansion.
//  3. Merge onto the built-in defaults (YAML overrides defaults).
//  4. Apply LLM_API_KEYS/LLM_ENDPOINT environment overrides.
//  5. Validate.
func Initialize(path string) (*Config, error) {
	log := slog.With("config_path", path)

	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Debug("no .env file loaded", "path", envPath, "error", err)
	} else {
		log.Info("loaded environment overrides", "path", envPath)
	}

	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			fileCfg, err := loadYAML(path)
			if err != nil {
				return nil, NewLoadError(path, err)
			}
			if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
				return nil, NewLoadError(path, fmt.Errorf("merge: %w", err))
			}
		} else {
			log.Info("no config file found, using built-in defaults")
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized",
		"max_parallel_api", cfg.MaxParallelAPI,
		"video_mode", cfg.VideoMode,
		"llm_model", cfg.LLMModel)

	return cfg, nil
}

func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	data = ExpandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides layers LLM_ENDPOINT / LLM_MODEL / LLM_API_KEYS
// (comma-separated) from the environment on top of whatever the YAML/
// defaults produced, preferring env-driven secrets over committed
// config files.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLM_ENDPOINT"); v != "" {
		cfg.LLMEndpoint = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := os.Getenv("LLM_API_KEYS"); v != "" {
		keys := strings.Split(v, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		cfg.LLMAPIKeys = keys
	}
}
