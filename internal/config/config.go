//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration loading, validation and
// per-request endpoint resolution for the assistant relay.
package config

import "time"

// Config is the root configuration structure for the server.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Site       SiteConfig       `yaml:"site"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddress string     `yaml:"listen_address"`
	Port          int        `yaml:"port"`
	TLS           TLSConfig  `yaml:"tls"`
	CORS          CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) settings for
// the non-streaming endpoints. The chat endpoint is always permissive.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"` // Origins to allow, or ["*"] for all
}

// TLSConfig contains TLS/HTTPS settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SiteConfig holds the process-wide fallbacks used when a request does
// not carry enough headers to derive its origin or backend endpoint.
type SiteConfig struct {
	Origin         string        `yaml:"origin"`          // SITE_ORIGIN
	GraphQLURL     string        `yaml:"graphql_url"`     // GRAPHQL_URL
	GraphQLTimeout time.Duration `yaml:"graphql_timeout"` // Per-query HTTP timeout
}

// RetrievalConfig controls how much context each data source contributes.
type RetrievalConfig struct {
	MaxRecords    int           `yaml:"max_records"`    // Records formatted per source
	ExcerptLength int           `yaml:"excerpt_length"` // Characters kept per excerpt
	PageLimit     int           `yaml:"page_limit"`     // "limit" sent with each query
	Timeout       time.Duration `yaml:"timeout"`        // Upper bound for the whole fan-out
}

// GenerationConfig contains settings for the upstream generation service.
type GenerationConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	APIKeyFile string        `yaml:"api_key_file"` // Path to file containing the API key
	Timeout    time.Duration `yaml:"timeout"`      // Dial/header timeout, not a stream deadline
}

// Fallbacks used when neither configuration nor request headers supply
// a value.
const (
	DefaultSiteOrigin  = "http://localhost:3000"
	DefaultGraphQLURL  = "http://localhost:4000/graphql"
	DefaultModel       = "gpt-4o-mini"
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultMaxRecords  = 3
	DefaultExcerptLen  = 240
	DefaultPageLimit   = 5
	DefaultListenPort  = 8080
	DefaultListenAddr  = "0.0.0.0"
	defaultGQLTimeout  = 10 * time.Second
	defaultRetrieveTTL = 8 * time.Second
	defaultGenTimeout  = 30 * time.Second
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress: DefaultListenAddr,
			Port:          DefaultListenPort,
			TLS: TLSConfig{
				Enabled: false,
			},
		},
		Site: SiteConfig{
			GraphQLTimeout: defaultGQLTimeout,
		},
		Retrieval: RetrievalConfig{
			MaxRecords:    DefaultMaxRecords,
			ExcerptLength: DefaultExcerptLen,
			PageLimit:     DefaultPageLimit,
			Timeout:       defaultRetrieveTTL,
		},
		Generation: GenerationConfig{
			BaseURL: DefaultBaseURL,
			Model:   DefaultModel,
			Timeout: defaultGenTimeout,
		},
	}
}
