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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvOpenAIAPIKey is the environment variable holding the generation
// service credential.
const EnvOpenAIAPIKey = "OPENAI_API_KEY"

// DefaultOpenAIKeyFile is the default key file, relative to the home
// directory.
const DefaultOpenAIKeyFile = ".openai-api-key"

// ErrAPIKeyNotFound is returned when no credential source yields a key.
var ErrAPIKeyNotFound = errors.New("API key not found")

// APIKeyLoader handles loading the generation API key from a configured
// path, the environment, or the default file location.
type APIKeyLoader struct {
	keyFile string
	getenv  func(string) string
}

// NewAPIKeyLoader creates a new API key loader for the given
// configuration.
func NewAPIKeyLoader(cfg GenerationConfig) *APIKeyLoader {
	return &APIKeyLoader{keyFile: cfg.APIKeyFile, getenv: os.Getenv}
}

// LoadOpenAIKey loads the generation service API key.
//
// Priority:
//  1. Configured file path (if specified in config)
//  2. OPENAI_API_KEY environment variable
//  3. ~/.openai-api-key
func (l *APIKeyLoader) LoadOpenAIKey() (string, error) {
	if l.keyFile != "" {
		return readKeyFile(expandPath(l.keyFile))
	}

	if key := strings.TrimSpace(l.getenv(EnvOpenAIAPIKey)); key != "" {
		return key, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	path := filepath.Join(homeDir, DefaultOpenAIKeyFile)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: set %s environment variable or create %s",
			ErrAPIKeyNotFound, EnvOpenAIAPIKey, path)
	}

	return readKeyFile(path)
}

// readKeyFile reads an API key from a file.
func readKeyFile(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: key file not found: %s", ErrAPIKeyNotFound, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%w: key file is empty: %s", ErrAPIKeyNotFound, path)
	}

	return key, nil
}
