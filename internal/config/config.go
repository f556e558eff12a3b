// Package config handles loading and validation of storefront configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"storefront/internal/model"
)

// Config holds all storefront configuration.
// Environment determines whether the business directory loads from env
// vars (development) or Secret Manager (production).
type Config struct {
	// Server settings (agent gateway)
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject  string
	DirectoryID string // Secret Manager secret holding the business directory

	// StateDir is where client-local state lives: cart token, basket
	// origin, address book, order history.
	StateDir string

	// Businesses is the directory of orderable merchants.
	Businesses []model.Business
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set), then env vars / Secret Manager.
func Load(ctx context.Context) (*Config, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		DirectoryID: os.Getenv("DIRECTORY_ID"),
		StateDir:    envOrDefault("STATE_DIR", defaultStateDir()),
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.DirectoryID == "" {
			return nil, fmt.Errorf("DIRECTORY_ID required in production environment")
		}
		err = cfg.loadDirectoryFromSecretManager(ctx)
	} else {
		err = cfg.loadDirectoryFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading business directory: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple env vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port        string           `json:"port"`
		Environment string           `json:"environment"`
		LogLevel    string           `json:"log_level"`
		StateDir    string           `json:"state_dir"`
		Businesses  []model.Business `json:"businesses"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		StateDir:    withDefault(fileConfig.StateDir, defaultStateDir()),
		Businesses:  fileConfig.Businesses,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDirectoryFromSecretManager fetches the business directory from GCP
// Secret Manager. Secret name format:
// projects/{project}/secrets/{directory_id}/versions/latest
func (c *Config) loadDirectoryFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.DirectoryID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Businesses); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	return nil
}

// loadDirectoryFromEnv reads the business directory from the BUSINESSES
// env var as a JSON array. Used in development mode for local testing.
func (c *Config) loadDirectoryFromEnv() error {
	directoryJSON := os.Getenv("BUSINESSES")
	if directoryJSON == "" {
		return fmt.Errorf("BUSINESSES environment variable required (JSON array)")
	}
	if err := json.Unmarshal([]byte(directoryJSON), &c.Businesses); err != nil {
		return fmt.Errorf("parsing BUSINESSES JSON: %w", err)
	}
	return nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if len(c.Businesses) == 0 {
		return fmt.Errorf("at least one business is required")
	}

	seen := make(map[string]bool, len(c.Businesses))
	for i, b := range c.Businesses {
		if b.ID == "" {
			return fmt.Errorf("business %d: id is required", i)
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate business id %q", b.ID)
		}
		seen[b.ID] = true
		if b.Name == "" {
			return fmt.Errorf("business %q: name is required", b.ID)
		}
		if b.BaseURL == "" {
			return fmt.Errorf("business %q: base_url is required", b.ID)
		}
		if _, err := url.Parse(b.BaseURL); err != nil {
			return fmt.Errorf("business %q: invalid base_url: %w", b.ID, err)
		}
	}
	return nil
}

// defaultStateDir places local state under the user config directory,
// falling back to a relative directory when none is available.
func defaultStateDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".storefront"
	}
	return filepath.Join(base, "storefront")
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
