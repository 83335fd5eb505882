package config

import (
	"strings"
	"testing"
	"time"

	"github.com/siahsang/blogplatform/internal/ratelimit"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 8080 || cfg.Storage != StoragePostgres || cfg.LogFormat != "dev" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.JWT.AccessTTL != time.Hour || cfg.JWT.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected token lifetimes %v %v", cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	}
	if got := cfg.Throttle[ratelimit.ScopeLogin]; got.Limit != 5 || got.Window != time.Minute {
		t.Fatalf("unexpected login rate %v", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ENV", "production")
	t.Setenv("STORAGE", "memory")
	t.Setenv("THROTTLE_SEARCH", "100/day")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage != StorageMemory || !cfg.TrustProxy || cfg.LogFormat != "json" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if got := cfg.Throttle[ratelimit.ScopeSearch]; got.Limit != 100 || got.Window != 24*time.Hour {
		t.Fatalf("unexpected search rate %v", got)
	}
	if len(cfg.CorsAllowedOrigins) != 2 || cfg.CorsAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CorsAllowedOrigins)
	}
}

func TestLoadReportsEveryInvalidValue(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORT", "eighty")
	t.Setenv("THROTTLE_LOGIN", "often")
	t.Setenv("STORAGE", "mongo")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected an error")
	}
	for _, want := range []string{"JWT_SECRET", "PORT", "THROTTLE_LOGIN", "STORAGE"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s to be reported in %q", want, err)
		}
	}
}
