package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config is the match server's rules file.
type Config struct {
	Rules struct {
		PickTimeout   time.Duration `yaml:"pick_timeout"`
		PreRoundDelay time.Duration `yaml:"pre_round_delay"`
	} `yaml:"rules"`
	Orchestrator struct {
		Workers int `yaml:"workers"`
	} `yaml:"orchestrator"`
}

func defaultConfig() *Config {
	var config Config
	config.Rules.PickTimeout = 30 * time.Second
	config.Rules.PreRoundDelay = 5 * time.Second
	config.Orchestrator.Workers = 10
	return &config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads path over the defaults, then applies env overrides.
// A missing file keeps the defaults.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", path).Msg("no config file, using default rules")
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Orchestrator.Workers = getEnvAsInt("ORCHESTRATOR_WORKERS", config.Orchestrator.Workers)
	if config.Orchestrator.Workers <= 0 {
		return nil, fmt.Errorf("orchestrator.workers must be positive")
	}
	if config.Rules.PickTimeout <= 0 {
		return nil, fmt.Errorf("rules.pick_timeout must be positive")
	}
	return config, nil
}

func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
