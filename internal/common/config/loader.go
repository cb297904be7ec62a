// internal/common/config/loader.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// apiKeyEnvVars are checked in order when llm.api_key is still empty after loading.
var apiKeyEnvVars = []string{"GROQ_API_KEY", "LLM_API_KEY"}

// Load reads configs/config.yaml (plus config.<APP_ENVIRONMENT>.yaml when present), applies
// environment overrides and defaults, and validates the result. A missing config file is
// not an error. workers names the task types the process serves: each gets default worker
// settings and any other key under workers is rejected.
func Load(workers ...string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v, workers)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string, workers ...string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v, workers)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper, workers []string) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg, workers)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg, workers); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dominion-workers")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("camunda.broker_address", "localhost:26500")
	v.SetDefault("camunda.plaintext", true)
	v.SetDefault("camunda.max_jobs_active", 10)
	v.SetDefault("camunda.timeout", 30000)
	v.SetDefault("camunda.request_timeout", 30000)

	// Empty llm values fall back to the completion client's own defaults.
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.system_persona", "")
	v.SetDefault("llm.timeout", 60000)

	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "")
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.max_connections", 10)
	v.SetDefault("database.postgres.max_idle", 2)
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.elasticsearch.addresses", []string{})
	v.SetDefault("database.elasticsearch.username", "")
	v.SetDefault("database.elasticsearch.password", "")
	v.SetDefault("database.elasticsearch.index", "dominion-invocations")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.sink", AuditSinkPostgres)
	v.SetDefault("rate_limit.limit", 0)
	v.SetDefault("rate_limit.window", 60000)

	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.region", "")
	v.SetDefault("alerts.kinds", []string{"authentication", "endpoint_error"})
	v.SetDefault("alerts.sns_topic_arn", "")
	v.SetDefault("alerts.email_from", "")
	v.SetDefault("alerts.email_to", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("server.port", 8080)
}

// loadEnvFile loads the first .env found in the working directory, its parents, or the
// project root. It returns the path loaded, or "".
func loadEnvFile() string {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills values that have conventional env names outside the viper key space.
func overrideEmptyConfig(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		for _, name := range apiKeyEnvVars {
			if val := os.Getenv(name); val != "" {
				cfg.LLM.APIKey = val
				break
			}
		}
	}

	if cfg.Alerts.Region == "" {
		cfg.Alerts.Region = os.Getenv("AWS_REGION")
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults fills the per-worker settings for every served task type.
func applyDefaults(cfg *Config, workers []string) {
	if cfg.Workers == nil {
		cfg.Workers = make(map[string]WorkerConfig)
	}

	for _, name := range workers {
		if _, ok := cfg.Workers[name]; !ok {
			cfg.Workers[name] = WorkerConfig{Enabled: true}
		}
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = cfg.Camunda.MaxJobsActive
		}
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = cfg.LLM.Timeout + 5000
		}
		cfg.Workers[key] = worker
	}
}

func validateConfig(cfg *Config, workers []string) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.LLM.BaseURL != "" {
		if u, err := url.Parse(cfg.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("llm.base_url must be an absolute URL, got %q", cfg.LLM.BaseURL)
		}
	}
	if cfg.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative")
	}

	if cfg.Audit.Enabled {
		if err := validateAuditSink(cfg); err != nil {
			return err
		}
	}

	if cfg.RateLimit.Limit > 0 {
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required when rate_limit.limit is set")
		}
		if cfg.RateLimit.Window <= 0 {
			return fmt.Errorf("rate_limit.window must be positive")
		}
	}

	if cfg.Alerts.Enabled {
		if cfg.Alerts.Region == "" {
			return fmt.Errorf("alerts.region is required when alerts are enabled")
		}
		hasEmail := cfg.Alerts.EmailFrom != "" && len(cfg.Alerts.EmailTo) > 0
		if cfg.Alerts.SNSTopicARN == "" && !hasEmail {
			return fmt.Errorf("alerts need alerts.sns_topic_arn or alerts.email_from with alerts.email_to")
		}
	}

	if len(workers) > 0 {
		known := make(map[string]bool, len(workers))
		for _, name := range workers {
			known[name] = true
		}
		for name := range cfg.Workers {
			if !known[name] {
				return fmt.Errorf("workers.%s: unknown task type (known: %s)", name, strings.Join(workers, ", "))
			}
		}
	}

	return nil
}

func validateAuditSink(cfg *Config) error {
	switch cfg.Audit.Sink {
	case AuditSinkPostgres:
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required when audit is enabled")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required when audit is enabled")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required when audit is enabled")
		}
	case AuditSinkElasticsearch:
		if len(cfg.Database.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses is required for the elasticsearch audit sink")
		}
		if cfg.Database.Elasticsearch.Index == "" {
			return fmt.Errorf("database.elasticsearch.index is required for the elasticsearch audit sink")
		}
	default:
		return fmt.Errorf("audit.sink must be %q or %q, got %q", AuditSinkPostgres, AuditSinkElasticsearch, cfg.Audit.Sink)
	}
	return nil
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       65000,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
