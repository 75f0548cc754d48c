// Package config provides application configuration with multi-source priority.
//
// Sources, highest to lowest:
//  1. Environment variables (GALILEO_* plus DATABASE_URL)
//  2. Config file (~/.galileo/config.yaml or ./config.yaml)
//  3. Defaults
//
// Categories:
//   - AI: model and embedder selection (Gemini via Genkit)
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: vector collection, dimension, metric, score threshold
//   - Agent: turn budget, history policy
//   - Ingest: STAC endpoint and default bounding box
//
// Sensitive values (the Postgres password) are never logged.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidVectorDim indicates the embedding dimension is out of range.
	ErrInvalidVectorDim = errors.New("invalid vector dimension")

	// ErrInvalidMetric indicates an unknown distance metric name.
	ErrInvalidMetric = errors.New("invalid distance metric")

	// ErrInvalidScoreThreshold indicates the retrieval threshold is outside [0,1].
	ErrInvalidScoreThreshold = errors.New("invalid score threshold")

	// ErrInvalidMaxTurns indicates a non-positive turn budget.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrInvalidHistoryPolicy indicates an unknown input-composition policy.
	ErrInvalidHistoryPolicy = errors.New("invalid history policy")
)

// Defaults for retrieval and agent behavior.
const (
	// DefaultCollection is the default vector collection name.
	DefaultCollection = "nl_to_sql"

	// DefaultVectorDim matches the Gemini embedder output we request.
	DefaultVectorDim = 768

	// DefaultTopK is the number of examples fetched per retrieval call.
	DefaultTopK = 5

	// DefaultScoreThreshold filters retrieved examples before they reach the model.
	DefaultScoreThreshold = 0.5

	// DefaultMaxTurns caps model turns across one task (collector + executor).
	DefaultMaxTurns = 10

	// DefaultSTACAPI is the Copernicus Data Space catalogue search endpoint.
	DefaultSTACAPI = "https://catalogue.dataspace.copernicus.eu/stac/search"

	// DefaultSTACCollection is the product collection ingested by default.
	DefaultSTACCollection = "sentinel-2-l2a"
)

// DefaultBBox is the default ingestion bounding box (Italy),
// as min_lon, min_lat, max_lon, max_lat.
var DefaultBBox = []float64{6.6, 36.6, 18.5, 47.1}

// Config stores application configuration.
type Config struct {
	// AI model configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Retrieval configuration
	Collection     string  `mapstructure:"collection" json:"collection"`
	VectorDim      int     `mapstructure:"vector_dim" json:"vector_dim"`
	Metric         string  `mapstructure:"metric" json:"metric"`
	TopK           int     `mapstructure:"top_k" json:"top_k"`
	ScoreThreshold float64 `mapstructure:"score_threshold" json:"score_threshold"`

	// Agent configuration
	MaxTurns      int    `mapstructure:"max_turns" json:"max_turns"`
	HistoryPolicy string `mapstructure:"history_policy" json:"history_policy"`

	// Knowledge base corpus path; empty means the embedded default corpus.
	KnowledgeBase string `mapstructure:"knowledge_base" json:"knowledge_base"`

	// Ingest configuration
	STACAPI        string `mapstructure:"stac_api" json:"stac_api"`
	STACCollection string `mapstructure:"stac_collection" json:"stac_collection"`
}

// Load loads configuration with priority env > file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".galileo")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", "gemini-embedding-001")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5433)
	v.SetDefault("postgres_user", "postgres")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db_name", "sentinel")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("collection", DefaultCollection)
	v.SetDefault("vector_dim", DefaultVectorDim)
	v.SetDefault("metric", "cosine")
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("score_threshold", DefaultScoreThreshold)

	v.SetDefault("max_turns", DefaultMaxTurns)
	v.SetDefault("history_policy", "nothing_else")
	v.SetDefault("knowledge_base", "")

	v.SetDefault("stac_api", DefaultSTACAPI)
	v.SetDefault("stac_collection", DefaultSTACCollection)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("GALILEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Compatibility with the plain POSTGRES_* variables used by docker-compose.
	_ = v.BindEnv("postgres_user", "GALILEO_POSTGRES_USER", "POSTGRES_USER")
	_ = v.BindEnv("postgres_password", "GALILEO_POSTGRES_PASSWORD", "POSTGRES_PASSWORD")
	_ = v.BindEnv("postgres_db_name", "GALILEO_POSTGRES_DB_NAME", "POSTGRES_DB")
}

// validHistoryPolicies mirrors agent.HistoryPolicy values; kept as strings
// here so config does not depend on the agent package.
var validHistoryPolicies = map[string]bool{
	"tool":             true,
	"handoff":          true,
	"tool_and_handoff": true,
	"nothing_else":     true,
}

var validMetrics = map[string]bool{
	"cosine": true,
	"l2":     true,
	"ip":     true,
}

// Validate checks configuration ranges and enumerations.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return ErrInvalidPostgresDBName
	}
	if c.VectorDim < 1 || c.VectorDim > 16000 {
		return fmt.Errorf("%w: %d", ErrInvalidVectorDim, c.VectorDim)
	}
	if !validMetrics[c.Metric] {
		return fmt.Errorf("%w: %q", ErrInvalidMetric, c.Metric)
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidScoreThreshold, c.ScoreThreshold)
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTurns, c.MaxTurns)
	}
	if !validHistoryPolicies[c.HistoryPolicy] {
		return fmt.Errorf("%w: %q", ErrInvalidHistoryPolicy, c.HistoryPolicy)
	}
	return nil
}
