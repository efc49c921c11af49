package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DB_PATH", "./data/assessments.db")
	t.Setenv("LLM_MODEL", "gpt-3.5-turbo")
	t.Setenv("HISTORY_WINDOW", "20")
	t.Setenv("SESSION_RETENTION", "720h")
	t.Setenv("LLM_TIMEOUT_MS", "30000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HistoryWindow != 20 {
		t.Errorf("HistoryWindow = %d, want 20", cfg.HistoryWindow)
	}
	if cfg.SessionRetention != 720*time.Hour {
		t.Errorf("SessionRetention = %v, want 720h", cfg.SessionRetention)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("LLM.Timeout = %v, want 30s", cfg.LLM.Timeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("HISTORY_WINDOW", "6")
	t.Setenv("SESSION_RETENTION", "0s")
	t.Setenv("LLM_TIMEOUT_MS", "1500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "9090" || cfg.DBPath != "/tmp/x.db" {
		t.Errorf("unexpected port/db: %q %q", cfg.Port, cfg.DBPath)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", cfg.LLM.Temperature)
	}
	if cfg.HistoryWindow != 6 {
		t.Errorf("HistoryWindow = %d, want 6", cfg.HistoryWindow)
	}
	if cfg.SessionRetention != 0 {
		t.Errorf("SessionRetention = %v, want 0", cfg.SessionRetention)
	}
	if cfg.LLM.Timeout != 1500*time.Millisecond {
		t.Errorf("LLM.Timeout = %v, want 1.5s", cfg.LLM.Timeout)
	}
}

func validConfig() *Config {
	return &Config{
		Port:               "8080",
		DBPath:             "db",
		HistoryWindow:      20,
		RateLimitPerMinute: 30,
		MaxUploadBytes:     1024,
		LLM:                LLMConfig{Temperature: 0.7, MaxTokens: 800, Timeout: time.Second},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty port", func(c *Config) { c.Port = "" }, true},
		{"empty db path", func(c *Config) { c.DBPath = "" }, true},
		{"zero window", func(c *Config) { c.HistoryWindow = 0 }, true},
		{"zero rate", func(c *Config) { c.RateLimitPerMinute = 0 }, true},
		{"temperature too high", func(c *Config) { c.LLM.Temperature = 2.5 }, true},
		{"negative retention", func(c *Config) { c.SessionRetention = -time.Hour }, true},
		{"zero timeout", func(c *Config) { c.LLM.Timeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLLMReady(t *testing.T) {
	cfg := validConfig()
	if cfg.LLMReady() {
		t.Error("LLMReady() = true without key or mock mode")
	}
	cfg.LLM.Mode = "mock"
	if !cfg.LLMReady() {
		t.Error("LLMReady() = false in mock mode")
	}
	cfg.LLM.Mode = ""
	cfg.LLM.APIKey = "sk-test"
	if !cfg.LLMReady() {
		t.Error("LLMReady() = false with API key")
	}
}
