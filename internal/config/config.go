// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.pluma/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: model selection, embedder model
//   - Storage: PostgreSQL connection (see storage.go)
//   - Pipeline: retrieval thresholds, fan-out limits, token budget
//   - Sources: external academic source toggles and credentials
//
// The pipeline thresholds (augmentation cutoff, Layer-1 signal minimum,
// terminology token budget, minimum publication year) are heuristics and are
// therefore exposed as configuration rather than hard-coded.
//
// Error handling uses sentinel errors for errors.Is() checks; wrap with
// fmt.Errorf("%w: details", ErrXxx).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidThreshold indicates a confidence threshold is out of [0,1].
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidTokenBudget indicates the terminology token budget is invalid.
	ErrInvalidTokenBudget = errors.New("invalid token budget")

	// ErrInvalidSignalMinimum indicates the Layer-1 signal minimum is invalid.
	ErrInvalidSignalMinimum = errors.New("invalid signal minimum")

	// ErrInvalidMinYear indicates the external source minimum year is invalid.
	ErrInvalidMinYear = errors.New("invalid minimum year")

	// ErrInvalidSourceTimeout indicates a per-source timeout is invalid.
	ErrInvalidSourceTimeout = errors.New("invalid source timeout")

	// ErrInvalidMaxResults indicates the per-source result cap is invalid.
	ErrInvalidMaxResults = errors.New("invalid max results")

	// ErrInvalidHistoryWindow indicates the conversation window is invalid.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrUnknownSource indicates an enabled source name is not recognized.
	ErrUnknownSource = errors.New("unknown external source")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default but supports
	// truncation to 768 via OutputDimensionality; the pgvector schema uses
	// 768 (see knowledge.VectorDimension).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultModelName is the default generative model for the Layer-2
	// classifier and downstream generation.
	DefaultModelName = "gemini-2.5-flash"
)

// Known external source names accepted in sources.enabled.
var knownSources = []string{"europepmc", "crossref", "semanticscholar"}

// SourcesConfig configures the external academic source clients.
type SourcesConfig struct {
	// Enabled lists the active sources by name.
	Enabled []string `mapstructure:"enabled" json:"enabled"`

	// SemanticScholarAPIKey raises the Semantic Scholar rate limit when set.
	SemanticScholarAPIKey string `mapstructure:"semantic_scholar_api_key" json:"semantic_scholar_api_key"` // SENSITIVE: masked in MarshalJSON
}

// PipelineConfig holds the retrieval orchestration thresholds.
// Every value here is a tunable heuristic with a documented default.
type PipelineConfig struct {
	// AugmentThreshold gates external augmentation: primary retrieval
	// confidence at or above this value skips all external calls.
	AugmentThreshold float64 `mapstructure:"augment_threshold" json:"augment_threshold"`

	// ClassifierThreshold gates the Layer-2 classifier: Layer-1 confidence
	// below this value triggers the fallback model call.
	ClassifierThreshold float64 `mapstructure:"classifier_threshold" json:"classifier_threshold"`

	// MinSignalMatches is the minimum Layer-1 signal hits for a spec to win.
	MinSignalMatches int `mapstructure:"min_signal_matches" json:"min_signal_matches"`

	// TokenBudget bounds the terminology enrichment block.
	TokenBudget int `mapstructure:"token_budget" json:"token_budget"`

	// MinYear excludes external documents published before this year.
	MinYear int `mapstructure:"min_year" json:"min_year"`

	// SourceTimeoutSeconds bounds each external source call.
	SourceTimeoutSeconds int `mapstructure:"source_timeout_seconds" json:"source_timeout_seconds"`

	// MaxResults caps results requested per external source.
	MaxResults int `mapstructure:"max_results" json:"max_results"`

	// HistoryWindow is the number of trailing conversation turns the
	// context resolver reads.
	HistoryWindow int `mapstructure:"history_window" json:"history_window"`

	// TopK is the number of documents requested from the primary store.
	TopK int `mapstructure:"top_k" json:"top_k"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON; when adding new
// secrets (passwords, API keys), update MarshalJSON.
type Config struct {
	// AI model configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Terminology catalog file (YAML). Empty means no enrichment.
	TerminologyPath string `mapstructure:"terminology_path" json:"terminology_path"`

	// HTTP server listen address (serve mode).
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	Pipeline PipelineConfig `mapstructure:"pipeline" json:"pipeline"`
	Sources  SourcesConfig  `mapstructure:"sources" json:"sources"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".pluma")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "pluma")
	viper.SetDefault("postgres_password", "pluma_dev_password")
	viper.SetDefault("postgres_db_name", "pluma")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("terminology_path", "")
	viper.SetDefault("listen_addr", "127.0.0.1:3500")

	// Pipeline thresholds. Heuristic values; see package doc.
	viper.SetDefault("pipeline.augment_threshold", 0.7)
	viper.SetDefault("pipeline.classifier_threshold", 0.55)
	viper.SetDefault("pipeline.min_signal_matches", 2)
	viper.SetDefault("pipeline.token_budget", 600)
	viper.SetDefault("pipeline.min_year", 2000)
	viper.SetDefault("pipeline.source_timeout_seconds", 8)
	viper.SetDefault("pipeline.max_results", 5)
	viper.SetDefault("pipeline.history_window", 5)
	viper.SetDefault("pipeline.top_k", 5)

	viper.SetDefault("sources.enabled", []string{"europepmc", "crossref"})
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; Validate()
// checks its presence.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "PLUMA_MODEL_NAME")
	mustBind("embedder_model", "PLUMA_EMBEDDER_MODEL")
	mustBind("terminology_path", "PLUMA_TERMINOLOGY_PATH")
	mustBind("listen_addr", "PLUMA_LISTEN_ADDR")
	mustBind("sources.semantic_scholar_api_key", "SEMANTIC_SCHOLAR_API_KEY")
}
