package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("PLATFORM_TOKEN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.PlatformToken != "" {
		t.Fatalf("expected empty PLATFORM_TOKEN when unset, got %q", cfg.PlatformToken)
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("PLAN_CONDITIONS_TTL_SECONDS", "-5")
	t.Setenv("PLATFORM_TIMEOUT_SECONDS", "abc")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "0")
	t.Setenv("DB_MIGRATE", "nope")

	cfg := Load()
	if cfg.PlanConditionsTTLSeconds != 300 {
		t.Fatalf("expected default conditions ttl, got %d", cfg.PlanConditionsTTLSeconds)
	}
	if cfg.PlatformTimeoutSeconds != 15 {
		t.Fatalf("expected default platform timeout, got %d", cfg.PlatformTimeoutSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default token ttl, got %d", cfg.AccessTokenTTLMinutes)
	}
	if !cfg.DBMigrate {
		t.Fatalf("expected migrations enabled when DB_MIGRATE is invalid")
	}
}

func TestLoadReadsPlatformSettings(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("PLATFORM_BASE_URL", " https://platform.example.com/api ")
	t.Setenv("DB_MIGRATE", "false")

	cfg := Load()
	if !cfg.Production() {
		t.Fatalf("expected production env, got %q", cfg.AppEnv)
	}
	if cfg.PlatformBaseURL != "https://platform.example.com/api" {
		t.Fatalf("unexpected platform url %q", cfg.PlatformBaseURL)
	}
	if cfg.DBMigrate {
		t.Fatalf("expected DB_MIGRATE=false to disable migrations")
	}
}
