package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"
)

// validSSLModes are the PostgreSQL sslmode values accepted by pgx.
var validSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API key is required for embedding and the Layer-2 classifier.
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q (valid: %v)", ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}
	if c.PostgresPassword == "pluma_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password for production deployments")
	}

	return c.Pipeline.validate(c.Sources)
}

// validate checks every pipeline threshold range.
func (p *PipelineConfig) validate(sources SourcesConfig) error {
	if p.AugmentThreshold < 0 || p.AugmentThreshold > 1 {
		return fmt.Errorf("%w: augment_threshold must be in [0,1], got %.2f", ErrInvalidThreshold, p.AugmentThreshold)
	}
	if p.ClassifierThreshold < 0 || p.ClassifierThreshold > 1 {
		return fmt.Errorf("%w: classifier_threshold must be in [0,1], got %.2f", ErrInvalidThreshold, p.ClassifierThreshold)
	}
	if p.MinSignalMatches < 1 {
		return fmt.Errorf("%w: min_signal_matches must be >= 1, got %d", ErrInvalidSignalMinimum, p.MinSignalMatches)
	}
	if p.TokenBudget < 1 {
		return fmt.Errorf("%w: token_budget must be >= 1, got %d", ErrInvalidTokenBudget, p.TokenBudget)
	}
	if p.MinYear < 1900 || p.MinYear > time.Now().Year()+1 {
		return fmt.Errorf("%w: min_year must be between 1900 and next year, got %d", ErrInvalidMinYear, p.MinYear)
	}
	if p.SourceTimeoutSeconds < 1 || p.SourceTimeoutSeconds > 120 {
		return fmt.Errorf("%w: source_timeout_seconds must be between 1 and 120, got %d", ErrInvalidSourceTimeout, p.SourceTimeoutSeconds)
	}
	if p.MaxResults < 1 || p.MaxResults > 50 {
		return fmt.Errorf("%w: max_results must be between 1 and 50, got %d", ErrInvalidMaxResults, p.MaxResults)
	}
	if p.HistoryWindow < 0 || p.HistoryWindow > 50 {
		return fmt.Errorf("%w: history_window must be between 0 and 50, got %d", ErrInvalidHistoryWindow, p.HistoryWindow)
	}
	if p.TopK < 1 || p.TopK > 20 {
		return fmt.Errorf("%w: top_k must be between 1 and 20, got %d", ErrInvalidMaxResults, p.TopK)
	}

	for _, name := range sources.Enabled {
		if !slices.Contains(knownSources, name) {
			return fmt.Errorf("%w: %q (known: %v)", ErrUnknownSource, name, knownSources)
		}
	}

	return nil
}

// SourceTimeout returns the per-source timeout as a duration.
func (p *PipelineConfig) SourceTimeout() time.Duration {
	return time.Duration(p.SourceTimeoutSeconds) * time.Second
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// MarshalJSON masks sensitive fields for safe logging.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	a := alias(c)
	if a.PostgresPassword != "" {
		a.PostgresPassword = maskedValue
	}
	if a.Sources.SemanticScholarAPIKey != "" {
		a.Sources.SemanticScholarAPIKey = maskedValue
	}
	return json.Marshal(a)
}
