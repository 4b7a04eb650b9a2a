package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for askdb-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Datasource is the restricted relational source queries run against.
	Datasource DatasourceConfig `yaml:"datasource"`

	// Schema discovery and allowlist derivation.
	Schema SchemaConfig `yaml:"schema"`

	// SQL result caches.
	Cache CacheConfig `yaml:"cache"`

	// Validator limits and structural policy.
	Validator ValidatorConfig `yaml:"validator"`

	// LLM endpoints for generation and embeddings.
	AI AIConfig `yaml:"ai"`

	// Content safety collaborator behavior.
	Safety SafetyConfig `yaml:"safety"`
}

// DatasourceConfig holds connection settings for the queried data source.
type DatasourceConfig struct {
	Driver   string `yaml:"driver" env:"DATASOURCE_DRIVER" env-default:"postgres"`
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSLMODE" env-default:"disable"`
	// Path is the database file for file-backed drivers (duckdb).
	Path string `yaml:"path" env:"DATASOURCE_PATH" env-default:""`
	// SchemaName scopes introspection; empty means the driver default.
	SchemaName string `yaml:"schema_name" env:"DATASOURCE_SCHEMA" env-default:""`
}

// SchemaConfig controls schema discovery and the derived allowlist.
type SchemaConfig struct {
	// TTLMinutes bounds schema staleness: the allowlist tracks the live
	// schema, and drift is visible only after the next refresh.
	TTLMinutes int `yaml:"ttl_minutes" env:"SCHEMA_TTL_MINUTES" env-default:"60"`
	MaxTables  int `yaml:"max_tables" env:"SCHEMA_MAX_TABLES" env-default:"100"`
	// SampleRows per table collected for prompt context.
	SampleRows int `yaml:"sample_rows" env:"SCHEMA_SAMPLE_ROWS" env-default:"5"`
	// AllowlistPath optionally points at a static YAML allowlist used
	// instead of schema-derived policy.
	AllowlistPath string `yaml:"allowlist_path" env:"SCHEMA_ALLOWLIST_PATH" env-default:""`
}

// CacheConfig controls the pattern and semantic SQL caches.
type CacheConfig struct {
	TTLHours            int     `yaml:"ttl_hours" env:"CACHE_TTL_HOURS" env-default:"168"`
	MaxSize             int     `yaml:"max_size" env:"CACHE_MAX_SIZE" env-default:"1000"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" env:"CACHE_SIMILARITY_THRESHOLD" env-default:"0.92"`
}

// ValidatorConfig holds query limits enforced by the validator.
type ValidatorConfig struct {
	MaxRowLimit     int  `yaml:"max_row_limit" env:"VALIDATOR_MAX_ROW_LIMIT" env-default:"10000"`
	RequireLimit    bool `yaml:"require_limit" env:"VALIDATOR_REQUIRE_LIMIT" env-default:"true"`
	AllowJoins      bool `yaml:"allow_joins" env:"VALIDATOR_ALLOW_JOINS" env-default:"false"`
	AllowSubqueries bool `yaml:"allow_subqueries" env:"VALIDATOR_ALLOW_SUBQUERIES" env-default:"false"`
}

// AIConfig holds LLM endpoints for SQL generation and embeddings.
type AIConfig struct {
	Provider       string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	LLMBaseURL     string `yaml:"llm_base_url" env:"AI_LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	LLMModel       string `yaml:"llm_model" env:"AI_LLM_MODEL" env-default:"gpt-4o"`
	LLMAPIKey      string `yaml:"-" env:"AI_LLM_API_KEY"` // Secret - not in YAML
	EmbeddingModel string `yaml:"embedding_model" env:"AI_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
}

// SafetyConfig controls the content safety collaborator.
type SafetyConfig struct {
	Enabled bool `yaml:"enabled" env:"SAFETY_ENABLED" env-default:"true"`
	// FailMode decides what happens when the checker itself fails:
	// "closed" rejects the query, "open" lets validation alone decide.
	FailMode string `yaml:"fail_mode" env:"SAFETY_FAIL_MODE" env-default:"closed"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. If config.yaml does not exist, configuration comes from
// environment variables alone. The version parameter is injected at build
// time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Datasource.Driver {
	case "postgres", "mssql", "duckdb":
	default:
		return fmt.Errorf("unknown datasource driver %q", c.Datasource.Driver)
	}

	switch c.Safety.FailMode {
	case "open", "closed":
	default:
		return fmt.Errorf("safety fail_mode must be \"open\" or \"closed\", got %q", c.Safety.FailMode)
	}

	switch c.AI.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown AI provider %q", c.AI.Provider)
	}

	if c.Cache.SimilarityThreshold <= 0 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0, 1], got %v", c.Cache.SimilarityThreshold)
	}

	if c.Validator.MaxRowLimit <= 0 {
		return fmt.Errorf("max_row_limit must be positive, got %d", c.Validator.MaxRowLimit)
	}

	return nil
}

// SchemaTTL returns the schema cache TTL as a duration.
func (c *SchemaConfig) SchemaTTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// CacheTTL returns the SQL cache TTL as a duration.
func (c *CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatasourceConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
