package main

import (
	"testing"

	"saledesk/backend/internal/config"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateConfigRejectsWeakValues(t *testing.T) {
	cases := []config.Config{
		{AuthSecret: "short", PlatformBaseURL: "https://platform.example.com"},
		{AuthSecret: strongSecret},
		{AuthSecret: strongSecret, PlatformBaseURL: "platform.example.com/api"},
		{AuthSecret: strongSecret, PlatformBaseURL: "ftp://platform.example.com"},
		{AuthSecret: strongSecret, PlatformBaseURL: "http://platform.example.com", AppEnv: "production"},
	}
	for _, cfg := range cases {
		if err := validateConfig(cfg); err == nil {
			t.Fatalf("expected config %+v to be rejected", cfg)
		}
	}
}

func TestValidateConfigAcceptsStrongValues(t *testing.T) {
	err := validateConfig(config.Config{AuthSecret: strongSecret, PlatformBaseURL: "http://127.0.0.1:8000/api"})
	if err != nil {
		t.Fatalf("expected development config to pass, got %v", err)
	}
	err = validateConfig(config.Config{AuthSecret: strongSecret, PlatformBaseURL: "https://platform.example.com/api", AppEnv: "production"})
	if err != nil {
		t.Fatalf("expected production config to pass, got %v", err)
	}
}
