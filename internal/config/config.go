// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	// MarkerPath is the installation completion marker file.
	MarkerPath string
	// OllamaHost is the base URL of the local inference runtime.
	OllamaHost string
	// Models is the prioritized candidate list attempted during bootstrap.
	Models []string
	// HealthWait bounds the single wait for the server after starting it.
	HealthWait time.Duration
	// GenerateTimeout bounds one completion call to the runtime.
	GenerateTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		DBPath:          getEnv("DB_PATH", "./data/develove.db"),
		MarkerPath:      getEnv("MARKER_PATH", "./.develove-installed"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		Models:          splitList(getEnv("OLLAMA_MODELS", "codellama:7b,llama2:7b")),
		HealthWait:      getEnvDuration("HEALTH_WAIT", 3*time.Second),
		GenerateTimeout: getEnvDuration("GENERATE_TIMEOUT", 2*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.MarkerPath == "" {
		return fmt.Errorf("MARKER_PATH cannot be empty")
	}
	if c.OllamaHost == "" {
		return fmt.Errorf("OLLAMA_HOST cannot be empty")
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("OLLAMA_MODELS must list at least one model")
	}
	if c.HealthWait <= 0 {
		return fmt.Errorf("HEALTH_WAIT must be > 0")
	}
	return nil
}

// DefaultModel is the model used for generation: the first candidate.
func (c *Config) DefaultModel() string {
	return c.Models[0]
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
