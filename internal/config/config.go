package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Endpoints
	WSEndpoint  string `yaml:"ws_endpoint"`
	APIEndpoint string `yaml:"api_endpoint"`

	// Turn transport
	ChunkSize int `yaml:"chunk_size"` // bytes per BODY frame, <= the 32 KiB transport ceiling

	// Agent panel
	AgentLeaveDelay time.Duration `yaml:"agent_leave_delay"`

	// Generation
	DefaultModel string `yaml:"default_model"`

	Environment string `yaml:"environment"`
	Debug       bool   `yaml:"debug"`

	// Logging
	LogDir      string `yaml:"log_dir"`
	LogMaxFiles int    `yaml:"log_max_files"`
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		WSEndpoint:      getEnv("WS_ENDPOINT", ""),
		APIEndpoint:     getEnv("API_ENDPOINT", ""),
		ChunkSize:       getEnvInt("CHUNK_SIZE", 32*1024),
		AgentLeaveDelay: getEnvDuration("AGENT_LEAVE_DELAY", 2500*time.Millisecond),
		DefaultModel:    getEnv("DEFAULT_MODEL", "claude-3-haiku"),
		Environment:     env,
		Debug:           getEnv("DEBUG", getDefaultDebug(env)) == "true",
		LogDir:          getEnv("LOG_DIR", ""),
		LogMaxFiles:     getEnvInt("LOG_MAX_FILES", 5),
	}
}

// LoadFile overlays a YAML config file on top of the environment-derived
// config. Unset file fields keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
