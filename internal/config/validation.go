//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Portions copyright (c) 2025, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns all validation
// errors found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateSite()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, c.validateGeneration()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateServer validates server configuration.
func (c *Config) validateServer() ValidationErrors {
	var errs ValidationErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			errs = append(errs, ValidationError{
				Field:   "server.tls.cert_file",
				Message: "required when TLS is enabled",
			})
		} else if _, err := os.Stat(expandPath(c.Server.TLS.CertFile)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.tls.cert_file",
				Message: fmt.Sprintf("file not found: %s", c.Server.TLS.CertFile),
			})
		}

		if c.Server.TLS.KeyFile == "" {
			errs = append(errs, ValidationError{
				Field:   "server.tls.key_file",
				Message: "required when TLS is enabled",
			})
		} else if _, err := os.Stat(expandPath(c.Server.TLS.KeyFile)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.tls.key_file",
				Message: fmt.Sprintf("file not found: %s", c.Server.TLS.KeyFile),
			})
		}
	}

	return errs
}

// validateSite checks that configured fallbacks are absolute URLs. Empty
// values are allowed; the resolver has hardcoded fallbacks.
func (c *Config) validateSite() ValidationErrors {
	var errs ValidationErrors

	if c.Site.Origin != "" && !isAbsoluteURL(c.Site.Origin) {
		errs = append(errs, ValidationError{
			Field:   "site.origin",
			Message: "must be an absolute http(s) URL",
		})
	}
	if c.Site.GraphQLURL != "" && !isAbsoluteURL(c.Site.GraphQLURL) {
		errs = append(errs, ValidationError{
			Field:   "site.graphql_url",
			Message: "must be an absolute http(s) URL",
		})
	}
	if c.Site.GraphQLTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "site.graphql_timeout",
			Message: "must be non-negative",
		})
	}

	return errs
}

// validateRetrieval validates the per-source limits.
func (c *Config) validateRetrieval() ValidationErrors {
	var errs ValidationErrors

	if c.Retrieval.MaxRecords < 0 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.max_records",
			Message: "must be non-negative",
		})
	}
	if c.Retrieval.ExcerptLength < 0 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.excerpt_length",
			Message: "must be non-negative",
		})
	}
	if c.Retrieval.PageLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "retrieval.page_limit",
			Message: "must be non-negative",
		})
	}

	return errs
}

// validateGeneration validates the generation service settings.
func (c *Config) validateGeneration() ValidationErrors {
	var errs ValidationErrors

	if !isAbsoluteURL(c.Generation.BaseURL) {
		errs = append(errs, ValidationError{
			Field:   "generation.base_url",
			Message: "must be an absolute http(s) URL",
		})
	}
	if c.Generation.Model == "" {
		errs = append(errs, ValidationError{
			Field:   "generation.model",
			Message: "required",
		})
	}

	return errs
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
