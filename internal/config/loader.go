//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default configuration file name.
	ConfigFileName = "assistant-relay.yaml"

	// SystemConfigPath is the system-wide configuration path.
	SystemConfigPath = "/etc/storefront/" + ConfigFileName
)

// Environment variable names read at load time.
const (
	EnvSiteOrigin    = "SITE_ORIGIN"
	EnvGraphQLURL    = "GRAPHQL_URL"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvOpenAIModel   = "OPENAI_MODEL"
)

// Load loads the configuration from the specified path, or searches
// default locations if path is empty. Unlike an explicit path, a missing
// file in the default locations is not an error: the defaults plus the
// environment are a complete configuration.
//
// Search order:
//  1. Explicit path (if provided)
//  2. /etc/storefront/assistant-relay.yaml
//  3. assistant-relay.yaml in the binary's directory
func Load(path string) (*Config, error) {
	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, err
		}
	}

	return finish(cfg, os.Getenv)
}

// FromEnv builds a configuration from defaults and environment only.
func FromEnv(getenv func(string) string) (*Config, error) {
	return finish(DefaultConfig(), getenv)
}

func finish(cfg *Config, getenv func(string) string) (*Config, error) {
	applyEnv(cfg, getenv)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// findConfigFile finds the configuration file using the search order.
// Returns an empty path when no file exists in the default locations.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	searchPaths := []string{
		SystemConfigPath,
		getBinaryDirConfigPath(),
	}

	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", nil
}

// getBinaryDirConfigPath returns the path to config file in the binary's
// directory.
func getBinaryDirConfigPath() string {
	executable, err := os.Executable()
	if err != nil {
		return ""
	}

	// Resolve symlinks to get the actual binary location
	executable, err = filepath.EvalSymlinks(executable)
	if err != nil {
		return ""
	}

	return filepath.Join(filepath.Dir(executable), ConfigFileName)
}

// loadFromFile parses a YAML file over the supplied defaults.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// applyEnv lets the environment override file values.
func applyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		return
	}
	if v := strings.TrimSpace(getenv(EnvSiteOrigin)); v != "" {
		cfg.Site.Origin = v
	}
	if v := strings.TrimSpace(getenv(EnvGraphQLURL)); v != "" {
		cfg.Site.GraphQLURL = v
	}
	if v := strings.TrimSpace(getenv(EnvOpenAIBaseURL)); v != "" {
		cfg.Generation.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvOpenAIModel)); v != "" {
		cfg.Generation.Model = v
	}
}

// applyDefaults fills zero values a partial YAML file may have left.
func applyDefaults(cfg *Config) {
	d := DefaultConfig()

	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = d.Server.ListenAddress
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Site.GraphQLTimeout == 0 {
		cfg.Site.GraphQLTimeout = d.Site.GraphQLTimeout
	}
	if cfg.Retrieval.MaxRecords == 0 {
		cfg.Retrieval.MaxRecords = d.Retrieval.MaxRecords
	}
	if cfg.Retrieval.ExcerptLength == 0 {
		cfg.Retrieval.ExcerptLength = d.Retrieval.ExcerptLength
	}
	if cfg.Retrieval.PageLimit == 0 {
		cfg.Retrieval.PageLimit = d.Retrieval.PageLimit
	}
	if cfg.Retrieval.Timeout == 0 {
		cfg.Retrieval.Timeout = d.Retrieval.Timeout
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = d.Generation.BaseURL
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = d.Generation.Model
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = d.Generation.Timeout
	}
}
