package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all prefectd configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath            string `json:"db_path"`
	LogLevel          string `json:"log_level"`
	DefaultPoolType   string `json:"default_pool_type"`
	EnforceParameters bool   `json:"enforce_parameters"`
	VaultKey          string `json:"vault_key"` // base64 32-byte key; empty disables sealing
}

func defaultConfig() Config {
	return Config{
		DBPath:          filepath.Join(prefectDir(), "prefect.db"),
		LogLevel:        "info",
		DefaultPoolType: "prefect-agent",
	}
}

func prefectDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".prefect"
	}
	return filepath.Join(home, ".prefect")
}

func settingsPath() string {
	return filepath.Join(prefectDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("PREFECT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PREFECT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PREFECT_DEFAULT_POOL_TYPE"); v != "" {
		cfg.DefaultPoolType = v
	}
	if v := os.Getenv("PREFECT_ENFORCE_PARAMETERS"); v != "" {
		cfg.EnforceParameters = v == "true" || v == "1"
	}
	if v := os.Getenv("PREFECT_VAULT_KEY"); v != "" {
		cfg.VaultKey = v
	}

	return cfg
}
