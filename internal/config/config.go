package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/mcpipeline/internal/common"
)

// Config is the root configuration loaded from YAML.
type Config struct {
	BaseDir   string       `yaml:"baseDir"`   // root of the stage directory tree
	RulesPath string       `yaml:"rulesPath"` // validation rules document
	LogLevel  string       `yaml:"logLevel"`  // debug|info|warn|error
	Loader    LoaderConfig `yaml:"loader"`
}

// LoaderConfig holds settings for the loading stage sinks.
type LoaderConfig struct {
	MinDelay   time.Duration `yaml:"minDelay"`   // simulated sink latency lower bound
	MaxDelay   time.Duration `yaml:"maxDelay"`   // simulated sink latency upper bound
	SQLitePath string        `yaml:"sqlitePath"` // sqlite sink database file
}

// Load reads YAML config from path, expands environment variables, and
// validates it. If path is empty, it tries PIPELINE_CONFIG, then defaults to
// "pipeline.yaml"; a missing defaulted file is not an error, the built-in
// defaults apply.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		if env := os.Getenv("PIPELINE_CONFIG"); env != "" {
			path = env
			explicit = true
		} else {
			path = "pipeline.yaml"
		}
	}

	var cfg Config
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - reading sanitized config file path is expected
	switch {
	case err == nil:
		// Expand environment variables in file content.
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// No config file; run on defaults.
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BaseDir == "" {
		cfg.BaseDir = "."
	}
	if cfg.RulesPath == "" {
		cfg.RulesPath = filepath.Join(cfg.BaseDir, common.DefaultRulesPath)
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Loader.MinDelay == 0 {
		cfg.Loader.MinDelay = 500 * time.Millisecond
	}
	if cfg.Loader.MaxDelay == 0 {
		cfg.Loader.MaxDelay = 1500 * time.Millisecond
	}
	if cfg.Loader.SQLitePath == "" {
		cfg.Loader.SQLitePath = filepath.Join(cfg.BaseDir, "loaded.db")
	}
}

func validate(cfg *Config) error {
	if cfg.Loader.MaxDelay < cfg.Loader.MinDelay {
		return fmt.Errorf("loader.maxDelay (%s) must not be below loader.minDelay (%s)",
			cfg.Loader.MaxDelay, cfg.Loader.MinDelay)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
