// Package config loads the agent runtime's single, strongly-validated
// configuration object from environment variables, applying sane defaults
// for every tunable.
package config

import (
	"os"
	"time"

	"github.com/spf13/cast"

	"github.com/LuisDee/nl2sql-sub001/internal/errs"
)

// Config is the process-wide configuration object. It is sourced once at
// startup via Load and never mutated afterward.
type Config struct {
	// Required warehouse/LLM settings.
	ProjectID         string
	Location          string
	GoldDataset       string
	SilverDataset     string
	MetadataDataset   string
	EmbeddingModelRef string
	LLMBaseURL        string
	LLMAPIKey         string
	LLMModel          string

	// Tunables, each with a documented default.
	SemanticCacheThreshold  float64       // default 0.10
	TableSearchTopK         int           // default 5
	ColumnSearchTopK        int           // default 30
	ColumnSearchMaxPerTable int           // default 15
	RowCap                  int           // default 1000
	QueryTimeout            time.Duration // default 30s
	FetchTimeout            time.Duration // default 120s
	MaxToolCallsPerTurn     int           // default 50
	MaxConsecutiveRepeats   int           // default 3
	MaxDryRunRetries        int           // default 3
	PromptSQLPreviewChars   int           // default 500
	PromptRowPreviewCount   int           // default 3
	AutonomousEmbeddings    bool          // default false, see SPEC_FULL §3.5

	CatalogRoot string // default "./catalogdata"
}

const (
	envProjectID         = "NL2SQL_PROJECT_ID"
	envLocation          = "NL2SQL_LOCATION"
	envGoldDataset       = "NL2SQL_GOLD_DATASET"
	envSilverDataset     = "NL2SQL_SILVER_DATASET"
	envMetadataDataset   = "NL2SQL_METADATA_DATASET"
	envEmbeddingModel    = "NL2SQL_EMBEDDING_MODEL"
	envLLMBaseURL        = "NL2SQL_LLM_BASE_URL"
	envLLMAPIKey         = "NL2SQL_LLM_API_KEY"
	envLLMModel          = "NL2SQL_LLM_MODEL"
	envCacheThreshold    = "NL2SQL_SEMANTIC_CACHE_THRESHOLD"
	envTableTopK         = "NL2SQL_TABLE_SEARCH_TOP_K"
	envColumnTopK        = "NL2SQL_COLUMN_SEARCH_TOP_K"
	envColumnMaxPerTable = "NL2SQL_COLUMN_SEARCH_MAX_PER_TABLE"
	envRowCap            = "NL2SQL_ROW_CAP"
	envQueryTimeout      = "NL2SQL_QUERY_TIMEOUT_SECONDS"
	envFetchTimeout      = "NL2SQL_FETCH_TIMEOUT_SECONDS"
	envMaxToolCalls      = "NL2SQL_MAX_TOOL_CALLS_PER_TURN"
	envMaxRepeats        = "NL2SQL_MAX_CONSECUTIVE_REPEATS"
	envMaxDryRunRetries  = "NL2SQL_MAX_DRY_RUN_RETRIES"
	envPromptSQLChars    = "NL2SQL_PROMPT_SQL_PREVIEW_CHARS"
	envPromptRowCount    = "NL2SQL_PROMPT_ROW_PREVIEW_COUNT"
	envAutonomousEmbed   = "NL2SQL_AUTONOMOUS_EMBEDDINGS"
	envCatalogRoot       = "NL2SQL_CATALOG_ROOT"
)

// getenvOr reads an env var, falling back to def when unset or empty.
func getenvOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load builds a Config from the process environment, applying documented
// defaults for every tunable, then validates it.
func Load() (*Config, error) {
	cfg := &Config{
		ProjectID:         os.Getenv(envProjectID),
		Location:          os.Getenv(envLocation),
		GoldDataset:       os.Getenv(envGoldDataset),
		SilverDataset:     os.Getenv(envSilverDataset),
		MetadataDataset:   os.Getenv(envMetadataDataset),
		EmbeddingModelRef: os.Getenv(envEmbeddingModel),
		LLMBaseURL:        os.Getenv(envLLMBaseURL),
		LLMAPIKey:         os.Getenv(envLLMAPIKey),
		LLMModel:          os.Getenv(envLLMModel),

		SemanticCacheThreshold:  cast.ToFloat64(getenvOr(envCacheThreshold, "0.10")),
		TableSearchTopK:         cast.ToInt(getenvOr(envTableTopK, "5")),
		ColumnSearchTopK:        cast.ToInt(getenvOr(envColumnTopK, "30")),
		ColumnSearchMaxPerTable: cast.ToInt(getenvOr(envColumnMaxPerTable, "15")),
		RowCap:                  cast.ToInt(getenvOr(envRowCap, "1000")),
		QueryTimeout:            time.Duration(cast.ToInt(getenvOr(envQueryTimeout, "30"))) * time.Second,
		FetchTimeout:            time.Duration(cast.ToInt(getenvOr(envFetchTimeout, "120"))) * time.Second,
		MaxToolCallsPerTurn:     cast.ToInt(getenvOr(envMaxToolCalls, "50")),
		MaxConsecutiveRepeats:   cast.ToInt(getenvOr(envMaxRepeats, "3")),
		MaxDryRunRetries:        cast.ToInt(getenvOr(envMaxDryRunRetries, "3")),
		PromptSQLPreviewChars:   cast.ToInt(getenvOr(envPromptSQLChars, "500")),
		PromptRowPreviewCount:   cast.ToInt(getenvOr(envPromptRowCount, "3")),
		AutonomousEmbeddings:    cast.ToBool(getenvOr(envAutonomousEmbed, "false")),
		CatalogRoot:             getenvOr(envCatalogRoot, "./catalogdata"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every required setting is present and every tunable
// is in a sane range. Returns a *errs.ConfigError naming the first offending
// field.
func (c *Config) Validate() error {
	required := map[string]string{
		envProjectID:       c.ProjectID,
		envLocation:        c.Location,
		envGoldDataset:     c.GoldDataset,
		envSilverDataset:   c.SilverDataset,
		envMetadataDataset: c.MetadataDataset,
		envEmbeddingModel:  c.EmbeddingModelRef,
		envLLMBaseURL:      c.LLMBaseURL,
		envLLMAPIKey:       c.LLMAPIKey,
		envLLMModel:        c.LLMModel,
	}
	for field, v := range required {
		if v == "" {
			return &errs.ConfigError{Field: field, Err: errMissing}
		}
	}

	if c.SemanticCacheThreshold < 0 || c.SemanticCacheThreshold > 1 {
		return &errs.ConfigError{Field: envCacheThreshold, Err: errRange}
	}
	if c.TableSearchTopK <= 0 {
		return &errs.ConfigError{Field: envTableTopK, Err: errRange}
	}
	if c.ColumnSearchTopK <= 0 {
		return &errs.ConfigError{Field: envColumnTopK, Err: errRange}
	}
	if c.ColumnSearchMaxPerTable <= 0 {
		return &errs.ConfigError{Field: envColumnMaxPerTable, Err: errRange}
	}
	if c.RowCap <= 0 {
		return &errs.ConfigError{Field: envRowCap, Err: errRange}
	}
	if c.MaxToolCallsPerTurn <= 0 {
		return &errs.ConfigError{Field: envMaxToolCalls, Err: errRange}
	}
	if c.MaxConsecutiveRepeats <= 0 {
		return &errs.ConfigError{Field: envMaxRepeats, Err: errRange}
	}
	if c.MaxDryRunRetries <= 0 {
		return &errs.ConfigError{Field: envMaxDryRunRetries, Err: errRange}
	}
	return nil
}

var (
	errMissing = missingErr{}
	errRange   = rangeErr{}
)

type missingErr struct{}

func (missingErr) Error() string { return "required setting is missing" }

type rangeErr struct{}

func (rangeErr) Error() string { return "value out of valid range" }
