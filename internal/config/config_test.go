package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.Port)
	}
	if cfg.OllamaHost != "http://localhost:11434" {
		t.Errorf("Expected default runtime host, got %q", cfg.OllamaHost)
	}
	if cfg.DefaultModel() != "codellama:7b" {
		t.Errorf("Expected codellama:7b as default model, got %q", cfg.DefaultModel())
	}
	if len(cfg.Models) != 2 || cfg.Models[1] != "llama2:7b" {
		t.Errorf("Expected llama2:7b fallback, got %v", cfg.Models)
	}
	if cfg.HealthWait != 3*time.Second {
		t.Errorf("Expected 3s health wait, got %v", cfg.HealthWait)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OLLAMA_MODELS", "mistral:7b, codellama:7b ,")
	t.Setenv("HEALTH_WAIT", "500ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %q", cfg.Port)
	}
	if len(cfg.Models) != 2 || cfg.Models[0] != "mistral:7b" {
		t.Errorf("Expected trimmed model list, got %v", cfg.Models)
	}
	if cfg.HealthWait != 500*time.Millisecond {
		t.Errorf("Expected 500ms health wait, got %v", cfg.HealthWait)
	}
}

func TestValidate(t *testing.T) {
	valid := &Config{
		Port:       "8080",
		DBPath:     "./data/develove.db",
		MarkerPath: "./.develove-installed",
		OllamaHost: "http://localhost:11434",
		Models:     []string{"codellama:7b"},
		HealthWait: time.Second,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	empty := *valid
	empty.Models = nil
	if err := empty.Validate(); err == nil {
		t.Error("Expected error for empty model list")
	}

	noHost := *valid
	noHost.OllamaHost = ""
	if err := noHost.Validate(); err == nil {
		t.Error("Expected error for empty OLLAMA_HOST")
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("GENERATE_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.GenerateTimeout != 2*time.Minute {
		t.Errorf("Expected fallback timeout, got %v", cfg.GenerateTimeout)
	}
}
