package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultQueueSize     = 256
	DefaultMaxConcurrent = 4
	DefaultPort          = 4747
	DefaultCounterBinary = "texcount"
)

// Load reads a YAML file from the given path and returns a new Manager.
// A missing or invalid file is an error: the watch list cannot be defaulted,
// so startup must fail rather than run with nothing to watch.
func Load(path string) (*Manager, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	applyDefaults(&cfg)

	// Override with environment variables if set
	if port := os.Getenv("WORDWATCH_PORT"); port != "" {
		p, err := strconv.ParseUint(port, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid WORDWATCH_PORT: %w", err)
		}
		cfg.Server.Port = uint32(p)
	}

	return NewManager(&cfg), nil
}

func applyDefaults(cfg *Config) {
	if cfg.Counter.Binary == "" {
		cfg.Counter.Binary = DefaultCounterBinary
	}
	if cfg.Watcher.QueueSize <= 0 {
		cfg.Watcher.QueueSize = DefaultQueueSize
	}
	if cfg.Watcher.MaxConcurrent <= 0 {
		cfg.Watcher.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "text"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
}
