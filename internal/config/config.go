// Package config provides configuration management for the memory service.
// It loads settings from environment variables with the OCMEM_ prefix and
// provides sensible defaults for all configuration options. An optional
// on-disk YAML file, named by OCMEM_LIMITS_FILE, overrides the lifecycle
// tuning constants; those constants have no env vars of their own.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the memory service.
type Config struct {
	Server   ServerConfig
	Security SecurityConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Limits   LimitsConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 8420)
	Host string // Server host (default: 0.0.0.0)
}

// SecurityConfig gates the HTTP API behind a bearer token outside
// development mode.
type SecurityConfig struct {
	SecurityMode string // "development" (no auth) or "production" (default: development)
	APIToken     string // Required bearer token in production mode
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine: postgres, sqlite (default: postgres)
	DataPath      string // Data directory, used only by the sqlite engine; no other files are kept there (default: ./data)
	PostgresDSN   string // Postgres connection string, used when StorageEngine=postgres
}

// LLMConfig contains LLM and embedding provider configuration.
type LLMConfig struct {
	Provider string // Extraction/classification provider: xai, google, anthropic (default: xai)

	XAIAPIKey   string
	XAIModel    string // default: grok-4-1-fast-non-reasoning
	XAIBaseURL  string // default: https://api.x.ai

	GoogleAPIKey  string
	GoogleModel   string // default: gemini-2.0-flash
	GoogleBaseURL string // default: https://generativelanguage.googleapis.com

	AnthropicAPIKey  string
	AnthropicModel   string // default: claude-3-5-sonnet-20241022
	AnthropicBaseURL string // default: https://api.anthropic.com

	EmbedProvider string // Embedding provider: voyage (default: voyage)
	VoyageAPIKey  string
	VoyageModel   string // default: voyage-code-3
	VoyageBaseURL string // default: https://api.voyageai.com

	RequestTimeout time.Duration // Per-call timeout applied to every suspension point (default: 60s)

	CircuitBreakerMaxFailures          uint32        // Consecutive failures before a provider client trips open (default: 3)
	CircuitBreakerTimeout              time.Duration // Time an open circuit waits before probing again (default: 30s)
	CircuitBreakerHalfOpenMaxSuccesses uint32        // Consecutive half-open successes required to close again (default: 2)
}

// LimitsConfig holds the lifecycle tuning constants. These mirror
// pkg/types' package-level defaults; a YAML override file lets operators
// retune them without a rebuild. Zero values fall back to pkg/types
// defaults at the call site (the engine, not this package, owns the
// canonical defaults).
type LimitsConfig struct {
	DedupDistance           float64 `yaml:"dedup_distance"`
	StructuralDedupDistance float64 `yaml:"structural_dedup_distance"`

	ContradictionCandidateDistance  float64 `yaml:"contradiction_candidate_distance"`
	StructuralContradictionDistance float64 `yaml:"structural_contradiction_distance"`
	ContradictionCandidateLimit     int     `yaml:"contradiction_candidate_limit"`

	MaxSessionSummaries int `yaml:"max_session_summaries"`
}

// Unconfigured returns the names (never the values) of required
// environment variables that are missing. While the result is non-empty,
// the HTTP API refuses ingestion and search with a 503 UNCONFIGURED error;
// listing and deleting memories are not gated on it.
func (c *Config) Unconfigured() []string {
	var missing []string

	switch c.LLM.Provider {
	case "google":
		if c.LLM.GoogleAPIKey == "" {
			missing = append(missing, "OCMEM_GOOGLE_API_KEY")
		}
	case "anthropic":
		if c.LLM.AnthropicAPIKey == "" {
			missing = append(missing, "OCMEM_ANTHROPIC_API_KEY")
		}
	default:
		if c.LLM.XAIAPIKey == "" {
			missing = append(missing, "OCMEM_XAI_API_KEY")
		}
	}

	if c.LLM.VoyageAPIKey == "" {
		missing = append(missing, "OCMEM_VOYAGE_API_KEY")
	}

	if c.Storage.StorageEngine == "postgres" && c.Storage.PostgresDSN == "" {
		missing = append(missing, "OCMEM_POSTGRES_DSN")
	}

	return missing
}

// LoadConfig loads configuration from environment variables with sensible
// defaults, then applies an optional OCMEM_LIMITS_FILE YAML override for
// the lifecycle tuning constants.
func LoadConfig() (*Config, error) {
	cfg := buildBaseConfig()

	if path := os.Getenv("OCMEM_LIMITS_FILE"); path != "" {
		if err := applyLimitsFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	return cfg, nil
}

func applyLimitsFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading limits file %s: %w", path, err)
	}
	var overrides LimitsConfig
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parsing limits file %s: %w", path, err)
	}
	cfg.Limits = overrides
	return nil
}

func buildBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("OCMEM_PORT", 8420),
			Host: getEnv("OCMEM_HOST", "0.0.0.0"),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("OCMEM_SECURITY_MODE", "development"),
			APIToken:     getEnv("OCMEM_API_TOKEN", ""),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("OCMEM_STORAGE_ENGINE", "postgres"),
			DataPath:      getEnv("OCMEM_DATA_DIR", "./data"),
			PostgresDSN:   getEnv("OCMEM_POSTGRES_DSN", ""),
		},
		LLM: LLMConfig{
			Provider: getEnv("OCMEM_LLM_PROVIDER", "xai"),

			XAIAPIKey:  getEnv("OCMEM_XAI_API_KEY", ""),
			XAIModel:   getEnv("OCMEM_XAI_MODEL", "grok-4-1-fast-non-reasoning"),
			XAIBaseURL: getEnv("OCMEM_XAI_BASE_URL", "https://api.x.ai"),

			GoogleAPIKey:  getEnv("OCMEM_GOOGLE_API_KEY", ""),
			GoogleModel:   getEnv("OCMEM_GOOGLE_MODEL", "gemini-2.0-flash"),
			GoogleBaseURL: getEnv("OCMEM_GOOGLE_BASE_URL", "https://generativelanguage.googleapis.com"),

			AnthropicAPIKey:  getEnv("OCMEM_ANTHROPIC_API_KEY", ""),
			AnthropicModel:   getEnv("OCMEM_ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
			AnthropicBaseURL: getEnv("OCMEM_ANTHROPIC_BASE_URL", "https://api.anthropic.com"),

			EmbedProvider: getEnv("OCMEM_EMBED_PROVIDER", "voyage"),
			VoyageAPIKey:  getEnv("OCMEM_VOYAGE_API_KEY", ""),
			VoyageModel:   getEnv("OCMEM_VOYAGE_MODEL", "voyage-code-3"),
			VoyageBaseURL: getEnv("OCMEM_VOYAGE_BASE_URL", "https://api.voyageai.com"),

			RequestTimeout: getEnvDuration("OCMEM_REQUEST_TIMEOUT", 60*time.Second),

			CircuitBreakerMaxFailures:          uint32(getEnvInt("OCMEM_CIRCUIT_MAX_FAILURES", 3)),
			CircuitBreakerTimeout:              getEnvDuration("OCMEM_CIRCUIT_TIMEOUT", 30*time.Second),
			CircuitBreakerHalfOpenMaxSuccesses: uint32(getEnvInt("OCMEM_CIRCUIT_HALF_OPEN_SUCCESSES", 2)),
		},
		Limits: LimitsConfig{
			DedupDistance:                   0.12,
			StructuralDedupDistance:         0.25,
			ContradictionCandidateDistance:  0.5,
			StructuralContradictionDistance: 0.65,
			ContradictionCandidateLimit:     15,
			MaxSessionSummaries:             3,
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the environment variable exists but cannot be parsed as an
// integer, it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (parsed with
// time.ParseDuration, e.g. "60s") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
