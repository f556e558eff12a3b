package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "ENVIRONMENT", "LOG_LEVEL",
		"GCP_PROJECT", "DIRECTORY_ID", "STATE_DIR", "BUSINESSES",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"port": "9090",
		"log_level": "debug",
		"state_dir": "/tmp/storefront-test",
		"businesses": [
			{"id": "pizza-palace", "name": "Pizza Palace",
				"base_url": "https://pizza.example", "currency": "GBP",
				"store_api_version": "1.0.0"}
		]
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("environment = %q, want development default", cfg.Environment)
	}
	if len(cfg.Businesses) != 1 || cfg.Businesses[0].ID != "pizza-palace" {
		t.Errorf("businesses = %+v", cfg.Businesses)
	}
	if cfg.StateDir != "/tmp/storefront-test" {
		t.Errorf("state dir = %q", cfg.StateDir)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BUSINESSES", `[
		{"id": "sushi-spot", "name": "Sushi Spot", "base_url": "https://sushi.example",
			"store_api_version": "1.1.0"}
	]`)
	t.Setenv("PORT", "7070")
	t.Setenv("STATE_DIR", t.TempDir())

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("port = %q, want 7070", cfg.Port)
	}
	if len(cfg.Businesses) != 1 || cfg.Businesses[0].ID != "sushi-spot" {
		t.Errorf("businesses = %+v", cfg.Businesses)
	}
}

func TestLoadRequiresBusinesses(t *testing.T) {
	clearConfigEnv(t)
	if _, err := Load(context.Background()); err == nil {
		t.Error("expected error without BUSINESSES")
	}

	t.Setenv("BUSINESSES", `[]`)
	if _, err := Load(context.Background()); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestValidateRejectsBadEntries(t *testing.T) {
	clearConfigEnv(t)

	tests := []struct {
		name string
		json string
	}{
		{"missing id", `[{"name": "X", "base_url": "https://x.example"}]`},
		{"missing name", `[{"id": "x", "base_url": "https://x.example"}]`},
		{"missing base_url", `[{"id": "x", "name": "X"}]`},
		{"duplicate id", `[
			{"id": "x", "name": "X", "base_url": "https://x.example"},
			{"id": "x", "name": "X2", "base_url": "https://x2.example"}
		]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BUSINESSES", tt.json)
			if _, err := Load(context.Background()); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestProductionRequiresGCPSettings(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	if _, err := Load(context.Background()); err == nil {
		t.Error("expected error without GCP_PROJECT in production")
	}

	t.Setenv("GCP_PROJECT", "my-project")
	if _, err := Load(context.Background()); err == nil {
		t.Error("expected error without DIRECTORY_ID in production")
	}
}
