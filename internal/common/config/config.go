// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	LLM       LLMConfig               `mapstructure:"llm"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	Audit     AuditConfig             `mapstructure:"audit"`
	RateLimit RateLimitConfig         `mapstructure:"rate_limit"`
	Alerts    AlertsConfig            `mapstructure:"alerts"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Server    ServerConfig            `mapstructure:"server"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	Plaintext      bool   `mapstructure:"plaintext"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// LLMConfig configures the chat-completion endpoint. APIKey may be empty; a missing key
// only shows up as an authentication failure on the first call.
type LLMConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	SystemPersona string `mapstructure:"system_persona"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

const (
	AuditSinkPostgres      = "postgres"
	AuditSinkElasticsearch = "elasticsearch"
)

// AuditConfig turns on the invocation audit trail. Sink selects where records go.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sink    string `mapstructure:"sink"`
}

// RateLimitConfig caps outbound completion calls per task category per window.
// Limit <= 0 disables the limiter.
type RateLimitConfig struct {
	Limit  int `mapstructure:"limit"`
	Window int `mapstructure:"window"` // milliseconds
}

// AlertsConfig sends operator alerts through AWS when a completion fails with one of Kinds.
// Either SNSTopicARN or EmailFrom plus EmailTo must be set when enabled.
type AlertsConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Region      string   `mapstructure:"region"`
	Kinds       []string `mapstructure:"kinds"`
	SNSTopicARN string   `mapstructure:"sns_topic_arn"`
	EmailFrom   string   `mapstructure:"email_from"`
	EmailTo     []string `mapstructure:"email_to"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// Addr returns the listen address for the health/metrics server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
