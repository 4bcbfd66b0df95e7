package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const VERSION = "1.4"

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	LLM         LLMConfig
	Analytics   AnalyticsConfig
	RateLimit   RateLimitConfig
	Tracing     TracingConfig
	Environment string
	LogLevel    string
	Version     string
}

type ServerConfig struct {
	Port int
	Host string
}

type DatabaseConfig struct {
	Driver   string // "postgres" or "sqlite3"
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// SQLite settings
	Path string
}

type LLMConfig struct {
	Provider    string // "ollama" or "anthropic"
	Timeout     time.Duration
	MaxAttempts int

	OllamaBaseURL string
	OllamaModel   string

	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
}

type AnalyticsConfig struct {
	DefaultDaysRange int
	MaxRows          int
	SQLTimeout       time.Duration
	SummaryLocale    string
}

type RateLimitConfig struct {
	// RequestsPerMinute per client address, 0 disables limiting
	RequestsPerMinute int
}

type TracingConfig struct {
	Enabled             bool
	ServiceName         string
	SamplingProbability float64

	// Trace exporter configuration
	TraceExporter string // "jaeger", "stackdriver", "zipkin", "datadog", "xray", "none"

	// Jaeger settings
	JaegerEndpoint string

	// Zipkin settings
	ZipkinEndpoint string

	// Stackdriver settings
	StackdriverProjectID string

	// Datadog settings
	DatadogAgentAddress string
	DatadogAPIKey       string

	// AWS X-Ray settings
	XRayRegion string

	// General agent endpoint (for exporters that support a common agent)
	AgentEndpoint string

	// Metrics exporter configuration
	MetricsExporter string // "prometheus", "stackdriver", "datadog", "none" or comma-separated list
	PrometheusPort  int
}

// LoadOptions contains options for loading configuration
type LoadOptions struct {
	EnvFile string // Optional environment file to load (e.g., ".env", ".env.test")
}

// Load loads the configuration with default options
func Load() (*Config, error) {
	// Try to load .env file but don't require it
	return LoadWithOptions(LoadOptions{EnvFile: ".env"})
}

// LoadWithOptions loads the configuration with the specified options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tickets")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_PATH", "tickets.db")
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("VERSION", VERSION)

	// LLM defaults
	v.SetDefault("LLM_PROVIDER", "ollama")
	v.SetDefault("LLM_MAX_ATTEMPTS", 3)
	v.SetDefault("OLLAMA_BASE_URL", "http://ollama:11434")
	v.SetDefault("OLLAMA_MODEL", "qwen2.5:7b-instruct-q4_K_M")
	v.SetDefault("OLLAMA_TIMEOUT_SECONDS", 30)
	v.SetDefault("ANTHROPIC_MODEL", "claude-sonnet-4-20250514")

	// Analytics defaults
	v.SetDefault("DEFAULT_DAYS_RANGE", 30)
	v.SetDefault("MAX_ROWS", 500)
	v.SetDefault("SQL_TIMEOUT_SECONDS", 5)
	v.SetDefault("SUMMARY_LOCALE", "en")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)

	// Default tracing config
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_SERVICE_NAME", "ticketpulse-api")
	v.SetDefault("TRACING_SAMPLING_PROBABILITY", 0.1)

	// Default trace exporter config
	v.SetDefault("TRACING_TRACE_EXPORTER", "none")
	v.SetDefault("TRACING_JAEGER_ENDPOINT", "http://localhost:14268/api/traces")
	v.SetDefault("TRACING_ZIPKIN_ENDPOINT", "http://localhost:9411/api/v2/spans")
	v.SetDefault("TRACING_STACKDRIVER_PROJECT_ID", "")
	v.SetDefault("TRACING_DATADOG_AGENT_ADDRESS", "localhost:8126")
	v.SetDefault("TRACING_DATADOG_API_KEY", "")
	v.SetDefault("TRACING_XRAY_REGION", "us-west-2")
	v.SetDefault("TRACING_AGENT_ENDPOINT", "localhost:8126")

	// Default metrics exporter config
	v.SetDefault("TRACING_METRICS_EXPORTER", "none")
	v.SetDefault("TRACING_PROMETHEUS_PORT", 9464)

	// Load environment file if specified
	if opts.EnvFile != "" {
		v.SetConfigName(opts.EnvFile)
		v.SetConfigType("env")

		currentPath, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("error getting current directory: %w", err)
		}

		v.AddConfigPath(currentPath)

		if err := v.ReadInConfig(); err != nil {
			// It's okay if config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	// Read environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The agent specific model name wins over the shared one
	ollamaModel := v.GetString("AI_AGENT_OLLAMA_MODEL")
	if ollamaModel == "" {
		ollamaModel = v.GetString("OLLAMA_MODEL")
	}

	config := &Config{
		Server: ServerConfig{
			Port: v.GetInt("SERVER_PORT"),
			Host: v.GetString("SERVER_HOST"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			Path:     v.GetString("DB_PATH"),
		},
		LLM: LLMConfig{
			Provider:         strings.ToLower(v.GetString("LLM_PROVIDER")),
			Timeout:          seconds(v.GetFloat64("OLLAMA_TIMEOUT_SECONDS"), 0.5),
			MaxAttempts:      max(1, v.GetInt("LLM_MAX_ATTEMPTS")),
			OllamaBaseURL:    strings.TrimRight(v.GetString("OLLAMA_BASE_URL"), "/"),
			OllamaModel:      ollamaModel,
			AnthropicAPIKey:  v.GetString("ANTHROPIC_API_KEY"),
			AnthropicModel:   v.GetString("ANTHROPIC_MODEL"),
			AnthropicBaseURL: v.GetString("ANTHROPIC_BASE_URL"),
		},
		Analytics: AnalyticsConfig{
			DefaultDaysRange: max(1, v.GetInt("DEFAULT_DAYS_RANGE")),
			MaxRows:          max(1, v.GetInt("MAX_ROWS")),
			SQLTimeout:       seconds(v.GetFloat64("SQL_TIMEOUT_SECONDS"), 0.5),
			SummaryLocale:    strings.ToLower(v.GetString("SUMMARY_LOCALE")),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: max(0, v.GetInt("RATE_LIMIT_PER_MINUTE")),
		},
		Tracing: TracingConfig{
			Enabled:             v.GetBool("TRACING_ENABLED"),
			ServiceName:         v.GetString("TRACING_SERVICE_NAME"),
			SamplingProbability: v.GetFloat64("TRACING_SAMPLING_PROBABILITY"),

			TraceExporter: v.GetString("TRACING_TRACE_EXPORTER"),

			JaegerEndpoint:       v.GetString("TRACING_JAEGER_ENDPOINT"),
			ZipkinEndpoint:       v.GetString("TRACING_ZIPKIN_ENDPOINT"),
			StackdriverProjectID: v.GetString("TRACING_STACKDRIVER_PROJECT_ID"),
			DatadogAgentAddress:  v.GetString("TRACING_DATADOG_AGENT_ADDRESS"),
			DatadogAPIKey:        v.GetString("TRACING_DATADOG_API_KEY"),
			XRayRegion:           v.GetString("TRACING_XRAY_REGION"),
			AgentEndpoint:        v.GetString("TRACING_AGENT_ENDPOINT"),

			MetricsExporter: v.GetString("TRACING_METRICS_EXPORTER"),
			PrometheusPort:  v.GetInt("TRACING_PROMETHEUS_PORT"),
		},
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Version:     v.GetString("VERSION"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the settings that have no safe default
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
	case "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite3 driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.Database.Driver)
	}

	switch c.LLM.Provider {
	case "ollama":
		if c.LLM.OllamaBaseURL == "" {
			return fmt.Errorf("OLLAMA_BASE_URL is required")
		}
	case "anthropic":
		if c.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER is anthropic")
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER: %s", c.LLM.Provider)
	}

	return nil
}

// seconds converts a fractional number of seconds with a lower bound
func seconds(value, minimum float64) time.Duration {
	return time.Duration(max(minimum, value) * float64(time.Second))
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
