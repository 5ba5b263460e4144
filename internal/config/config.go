// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health server listens on (e.g. :8081).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// SkyWalkingURL is the base URL of the SkyWalking UI/OAP; /graphql is appended for queries.
	SkyWalkingURL string `mapstructure:"SKYWALKING_URL"`
	// SkyWalkingServiceLayer restricts the services listed to the assistant.
	SkyWalkingServiceLayer string `mapstructure:"SKYWALKING_SERVICE_LAYER"`
	// SkyWalkingTimeout bounds each GraphQL request.
	SkyWalkingTimeout time.Duration `mapstructure:"SKYWALKING_TIMEOUT"`
	// DashboardWindow is the time range used by metrics, topology and chart tools.
	DashboardWindow time.Duration `mapstructure:"DASHBOARD_WINDOW"`
	// AlarmWindow is the time range scanned for new alarms.
	AlarmWindow time.Duration `mapstructure:"ALARM_WINDOW"`
	// AlarmLimit is the maximum number of alarms fetched per interaction.
	AlarmLimit int `mapstructure:"ALARM_LIMIT"`
	// TracePollRetries is the number of extra attempts while a trace is not indexed yet.
	TracePollRetries int `mapstructure:"TRACE_POLL_RETRIES"`
	// TracePollDelay is the wait between trace attempts.
	TracePollDelay time.Duration `mapstructure:"TRACE_POLL_DELAY"`

	// Azure OpenAI deployment used by the agent.
	AzureEndpoint       string `mapstructure:"AZURE_ENDPOINT"`
	AzureAPIKey         string `mapstructure:"AZURE_API_KEY"`
	AzureDeploymentName string `mapstructure:"AZURE_DEPLOYMENT_NAME"`
	AzureAPIVersion     string `mapstructure:"AZURE_API_VERSION"`
	// ModelName is the model requested from the deployment.
	ModelName string `mapstructure:"MODEL_NAME"`
	// AgentMaxIterations bounds tool-call rounds per question.
	AgentMaxIterations int `mapstructure:"AGENT_MAX_ITERATIONS"`

	// AppURL is the public URL of the copilot, published in the manifest.
	AppURL string `mapstructure:"APP_URL"`
	// SupportEmail is the contact published in the manifest.
	SupportEmail string `mapstructure:"SUPPORT_EMAIL"`
	// AssetsDir holds static assets such as logo.png.
	AssetsDir string `mapstructure:"ASSETS_DIR"`

	// OTLPEndpoint is the OTLP gRPC collector address; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure disables TLS towards the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses. When set, new alarm
	// notifications are published to AlarmKafkaTopic.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AlarmKafkaTopic is the Kafka topic for alarm notifications.
	AlarmKafkaTopic string `mapstructure:"ALARM_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the notification worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the notification worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("GRPC_ADDR", ":8081")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SKYWALKING_URL", "")
	v.SetDefault("SKYWALKING_SERVICE_LAYER", "GENERAL")
	v.SetDefault("SKYWALKING_TIMEOUT", "30s")
	v.SetDefault("DASHBOARD_WINDOW", "10m")
	v.SetDefault("ALARM_WINDOW", "30m")
	v.SetDefault("ALARM_LIMIT", 10)
	v.SetDefault("TRACE_POLL_RETRIES", 4)
	v.SetDefault("TRACE_POLL_DELAY", "5s")
	v.SetDefault("AZURE_ENDPOINT", "")
	v.SetDefault("AZURE_API_KEY", "")
	v.SetDefault("AZURE_DEPLOYMENT_NAME", "")
	v.SetDefault("AZURE_API_VERSION", "2024-02-01")
	v.SetDefault("MODEL_NAME", "gpt-4o")
	v.SetDefault("AGENT_MAX_ITERATIONS", 3)
	v.SetDefault("APP_URL", "http://localhost:8000")
	v.SetDefault("SUPPORT_EMAIL", "")
	v.SetDefault("ASSETS_DIR", "assets")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("ALARM_KAFKA_TOPIC", "copilot-alarms")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "copilot-alarm-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.DashboardWindow <= 0 || cfg.AlarmWindow <= 0 {
		return nil, errors.New("config: DASHBOARD_WINDOW and ALARM_WINDOW must be positive")
	}
	if cfg.AlarmLimit <= 0 {
		return nil, errors.New("config: ALARM_LIMIT must be positive")
	}
	if cfg.TracePollRetries < 0 || cfg.TracePollDelay < 0 {
		return nil, errors.New("config: TRACE_POLL_RETRIES and TRACE_POLL_DELAY must not be negative")
	}
	if cfg.AgentMaxIterations <= 0 {
		return nil, errors.New("config: AGENT_MAX_ITERATIONS must be positive")
	}

	return &cfg, nil
}

// ValidateServer reports the settings the API server needs beyond what Load checks.
// The migrate and worker commands do not need them.
func (c *Config) ValidateServer() error {
	if c.SkyWalkingURL == "" {
		return errors.New("config: SKYWALKING_URL must be set")
	}
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set")
	}
	return nil
}

// LLMEnabled reports whether an Azure OpenAI deployment is configured.
func (c *Config) LLMEnabled() bool {
	return c != nil && c.AzureEndpoint != "" && c.AzureAPIKey != "" && c.AzureDeploymentName != ""
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if alarm publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
