package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"ENVIRONMENT", "TABLE_PREFIX", "HOLDED_SAFE_MODE", "AGENT_MAX_ROUNDS",
		"PENDING_TTL", "RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW", "DATABASE_URL",
		"TRUST_PROXY", "AI_PROVIDER", "AI_MODEL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if !cfg.SafeMode {
		t.Error("SafeMode should default to true")
	}
	if cfg.MaxRounds != 10 {
		t.Errorf("MaxRounds = %d, want 10", cfg.MaxRounds)
	}
	if cfg.PendingTTL != 5*time.Minute {
		t.Errorf("PendingTTL = %v, want 5m", cfg.PendingTTL)
	}
	if cfg.RateLimitMax != 10 || cfg.RateLimitWindow != time.Minute {
		t.Errorf("rate limit = %d/%v, want 10/1m", cfg.RateLimitMax, cfg.RateLimitWindow)
	}
	if cfg.TablePrefix != "dev_" {
		t.Errorf("TablePrefix = %q, want dev_", cfg.TablePrefix)
	}
	if cfg.UsePostgres() {
		t.Error("UsePostgres should be false without DATABASE_URL")
	}
	if cfg.TrustProxy {
		t.Error("TrustProxy should default to false")
	}
	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", cfg.Provider)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", cfg.Model)
	}
}

func TestLoad_AnthropicDefaultModel(t *testing.T) {
	t.Setenv("AI_PROVIDER", "anthropic")
	t.Setenv("AI_MODEL", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg := Load()

	if cfg.Model != "claude-sonnet-4-5" {
		t.Errorf("Model = %q, want claude-sonnet-4-5", cfg.Model)
	}
	if cfg.AnthropicAPIKey != "sk-ant-test" {
		t.Errorf("AnthropicAPIKey = %q", cfg.AnthropicAPIKey)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("TABLE_PREFIX", "")
	t.Setenv("HOLDED_SAFE_MODE", "false")
	t.Setenv("AGENT_MAX_ROUNDS", "3")
	t.Setenv("PENDING_TTL", "90")
	t.Setenv("AGENT_REQUEST_TIMEOUT", "30s")
	t.Setenv("DATABASE_URL", "postgres://localhost/holded")

	cfg := Load()

	if cfg.SafeMode {
		t.Error("SafeMode should be false")
	}
	if cfg.MaxRounds != 3 {
		t.Errorf("MaxRounds = %d, want 3", cfg.MaxRounds)
	}
	if cfg.PendingTTL != 90*time.Second {
		t.Errorf("PendingTTL = %v, want 90s", cfg.PendingTTL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
	if cfg.TablePrefix != "prod_" {
		t.Errorf("TablePrefix = %q, want prod_", cfg.TablePrefix)
	}
	if !cfg.UsePostgres() {
		t.Error("UsePostgres should be true")
	}
}

func TestGetBool(t *testing.T) {
	tests := []struct {
		raw  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"1", false, true},
		{"off", true, false},
		{"FALSE", true, false},
		{"garbage", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.raw)
			if got := getBool("TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("getBool(%q, %v) = %v, want %v", tt.raw, tt.def, got, tt.want)
			}
		})
	}
}
