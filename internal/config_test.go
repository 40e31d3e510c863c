package internal

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Limiter.MinInterval() != 500*time.Millisecond {
		t.Errorf("min interval = %v, want 500ms", cfg.Limiter.MinInterval())
	}
	if cfg.Limiter.PerMinuteCap != 150 {
		t.Errorf("per-minute cap = %d, want 150", cfg.Limiter.PerMinuteCap)
	}
	if cfg.Concepts.TTL() != 24*time.Hour {
		t.Errorf("concepts TTL = %v, want 24h", cfg.Concepts.TTL())
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProviderConfig_InvalidKind(t *testing.T) {
	cfg := ProviderConfig{Kind: "acme", Model: "m"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown provider kind should fail validation")
	}
}

func TestProviderConfig_ModelRequired(t *testing.T) {
	cfg := ProviderConfig{Kind: "openai"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing model should fail validation")
	}
}

func TestConnectionsConfig_InvalidStrength(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Connections.Strength = "extreme"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown strength should fail validation")
	}
}

func TestConnectionsConfig_InvalidFormat(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Connections.Format = "table"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown format should fail validation")
	}
}

func TestConnectionsConfig_HeaderLevelBounds(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Connections.HeaderLevel = 7
	if err := cfg.Validate(); err == nil {
		t.Fatal("header level above 6 should fail validation")
	}
}

func TestLimiterConfig_Bounds(t *testing.T) {
	cfg := LimiterConfig{MinIntervalMS: 0, PerMinuteCap: 10}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero min interval should fail validation")
	}
	cfg = LimiterConfig{MinIntervalMS: 500, PerMinuteCap: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero per-minute cap should fail validation")
	}
}
