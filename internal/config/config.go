// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Engagement modes accepted by ENGAGEMENT_MODE.
const (
	EngagementDescription = "description"
	EngagementComments    = "comments"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	DBURL            string        `mapstructure:"DB_URL"`
	HTTPAddr         string        `mapstructure:"HTTP_ADDR"`
	GithubToken      string        `mapstructure:"GITHUB_TOKEN"`
	GithubAPIURL     string        `mapstructure:"GITHUB_API_URL"`
	ReposToSync      []string      `mapstructure:"REPOS_TO_SYNC"`
	SyncInterval     time.Duration `mapstructure:"SYNC_INTERVAL"`
	SyncConcurrency  int           `mapstructure:"SYNC_CONCURRENCY"`
	MaxPages         int           `mapstructure:"MAX_PAGES"`
	FetchComments    bool          `mapstructure:"FETCH_COMMENTS"`
	BackfillMetadata bool          `mapstructure:"BACKFILL_METADATA"`

	LLMAPIKey         string        `mapstructure:"LLM_API_KEY"`
	LLMModel          string        `mapstructure:"LLM_MODEL"`
	LLMBaseURL        string        `mapstructure:"LLM_BASE_URL"`
	EnrichConcurrency int           `mapstructure:"ENRICH_CONCURRENCY"`
	EnrichTimeout     time.Duration `mapstructure:"ENRICH_TIMEOUT"`
	EnrichBatchSize   int           `mapstructure:"ENRICH_BATCH_SIZE"`
	EnrichInterval    time.Duration `mapstructure:"ENRICH_INTERVAL"`
	EnrichRetryAfter  time.Duration `mapstructure:"ENRICH_RETRY_AFTER"`

	EngagementMode string        `mapstructure:"ENGAGEMENT_MODE"`
	ReportPath     string        `mapstructure:"REPORT_PATH"`
	ReportDeadline time.Duration `mapstructure:"REPORT_DEADLINE"`

	// DrainDeadline caps the enrichment drain of a one-shot report run.
	DrainDeadline time.Duration `mapstructure:"ENRICH_DRAIN_DEADLINE"`
}

var defaults = map[string]any{
	"LOG_LEVEL":             "info",
	"HTTP_ADDR":             ":8080",
	"REPOS_TO_SYNC":         "elastic/kibana",
	"SYNC_INTERVAL":         "1h",
	"SYNC_CONCURRENCY":      5,
	"MAX_PAGES":             0,
	"FETCH_COMMENTS":        false,
	"BACKFILL_METADATA":     true,
	"LLM_MODEL":             "microsoft/deberta-v3-large",
	"LLM_BASE_URL":          "https://api-inference.huggingface.co",
	"ENRICH_CONCURRENCY":    4,
	"ENRICH_TIMEOUT":        "30s",
	"ENRICH_BATCH_SIZE":     100,
	"ENRICH_INTERVAL":       "1m",
	"ENRICH_RETRY_AFTER":    "1h",
	"ENGAGEMENT_MODE":       EngagementDescription,
	"REPORT_PATH":           "repository_report.txt",
	"REPORT_DEADLINE":       "10m",
	"ENRICH_DRAIN_DEADLINE": "5m",
}

// keys that have no default but must still be visible to Unmarshal when only set in the environment.
var envOnly = []string{"DB_URL", "GITHUB_TOKEN", "GITHUB_API_URL", "LLM_API_KEY"}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	return load(".")
}

func load(configPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(configPath)
	_ = v.ReadInConfig() // Ignore error if file not found

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnly {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.ReposToSync = splitRepos(cfg.ReposToSync)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnrichmentEnabled reports whether an inference API key is configured.
func (c *Config) EnrichmentEnabled() bool {
	return c.LLMAPIKey != ""
}

func (c *Config) validate() error {
	if c.DBURL == "" {
		return errors.New("DB_URL is a required configuration field")
	}
	if c.GithubToken == "" {
		return errors.New("GITHUB_TOKEN is a required configuration field")
	}
	if len(c.ReposToSync) == 0 {
		return errors.New("REPOS_TO_SYNC must contain at least one repository")
	}
	if c.SyncConcurrency < 1 {
		return errors.New("SYNC_CONCURRENCY must be at least 1")
	}
	if c.EnrichConcurrency < 1 {
		return errors.New("ENRICH_CONCURRENCY must be at least 1")
	}
	if c.EnrichBatchSize < 1 {
		return errors.New("ENRICH_BATCH_SIZE must be at least 1")
	}
	if c.MaxPages < 0 {
		return errors.New("MAX_PAGES must not be negative")
	}
	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{"SYNC_INTERVAL", c.SyncInterval},
		{"ENRICH_INTERVAL", c.EnrichInterval},
		{"ENRICH_TIMEOUT", c.EnrichTimeout},
		{"REPORT_DEADLINE", c.ReportDeadline},
		{"ENRICH_DRAIN_DEADLINE", c.DrainDeadline},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be a positive duration, got %s", d.key, d.value)
		}
	}
	if c.EnrichRetryAfter < 0 {
		return errors.New("ENRICH_RETRY_AFTER must not be negative")
	}
	if c.DrainDeadline > c.ReportDeadline {
		return fmt.Errorf("ENRICH_DRAIN_DEADLINE (%s) must not exceed REPORT_DEADLINE (%s)", c.DrainDeadline, c.ReportDeadline)
	}
	switch c.EngagementMode {
	case EngagementDescription, EngagementComments:
	default:
		return fmt.Errorf("ENGAGEMENT_MODE must be %q or %q, got %q", EngagementDescription, EngagementComments, c.EngagementMode)
	}
	return nil
}

// splitRepos flattens comma-separated entries and drops blanks, so both
// "a/b,c/d" and ["a/b", "c/d"] yield the same list.
func splitRepos(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, r := range strings.Split(entry, ",") {
			if r = strings.TrimSpace(r); r != "" {
				out = append(out, r)
			}
		}
	}
	return out
}
