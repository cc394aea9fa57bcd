package config

import (
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
// API Key Precedence Order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (BETTERATS_AI_APIKEY, GEMINI_API_KEY)
// 4. Default values - Lowest priority
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`

	templates *Templates
}

// AIConfig holds the generation backend configuration. The global values act
// as fallbacks for the per-operation blocks.
type AIConfig struct {
	Provider         string        `mapstructure:"provider"`
	Model            string        `mapstructure:"model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	APIKey           string        `mapstructure:"apiKey"`
	MaxRetries       int           `mapstructure:"maxRetries"`
	Temperature      float32       `mapstructure:"temperature"`
	UseSystemPrompts bool          `mapstructure:"useSystemPrompts"`
	StructuredOutput bool          `mapstructure:"structuredOutput"`

	CandidateData OperationAIConfig `mapstructure:"candidateData"`
	Assessment    OperationAIConfig `mapstructure:"assessment"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// OperationAIConfig holds AI configuration for one task kind. Nil pointers
// fall back to the global AIConfig values.
type OperationAIConfig struct {
	Provider         string               `mapstructure:"provider"`
	Model            string               `mapstructure:"model"`
	Timeout          *time.Duration       `mapstructure:"timeout"`
	APIKey           string               `mapstructure:"apiKey"`
	MaxRetries       *int                 `mapstructure:"maxRetries"`
	Temperature      *float32             `mapstructure:"temperature"`
	UseSystemPrompts *bool                `mapstructure:"useSystemPrompts"`
	StructuredOutput *bool                `mapstructure:"structuredOutput"`
	Prompts          PromptConfig         `mapstructure:"prompts"`
	CircuitBreaker   CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// PromptConfig overrides the built-in prompt template of an operation.
// A file takes precedence over inline text.
type PromptConfig struct {
	System     string `mapstructure:"system"`
	SystemFile string `mapstructure:"systemFile"`
	User       string `mapstructure:"user"`
	UserFile   string `mapstructure:"userFile"`
}

// PipelineConfig holds the document pipeline settings
type PipelineConfig struct {
	MaxWorkers  int   `mapstructure:"maxWorkers"`  // Concurrent requirement assessments
	MaxFileSize int64 `mapstructure:"maxFileSize"` // Per-document size limit in bytes
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout     time.Duration `mapstructure:"idleTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`

	APIKeys        []string `mapstructure:"apiKeys"`
	MaxRequestSize int64    `mapstructure:"maxRequestSize"`
	UploadDir      string   `mapstructure:"uploadDir"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	RequestsPerMin int           `mapstructure:"requestsPerMin"`
	BurstCapacity  int           `mapstructure:"burstCapacity"`
	ByIP           bool          `mapstructure:"byIP"`
	ByAPIKey       bool          `mapstructure:"byAPIKey"`
	Window         time.Duration `mapstructure:"window"`
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool             `mapstructure:"enabled"`
	ServiceName     string           `mapstructure:"serviceName"`
	ServiceVersion  string           `mapstructure:"serviceVersion"`
	ServiceInstance string           `mapstructure:"serviceInstance"`
	Tracing         TracingConfig    `mapstructure:"tracing"`
	Metrics         MetricsConfig    `mapstructure:"metrics"`
	Console         ConsoleConfig    `mapstructure:"console"`
	Prometheus      PrometheusConfig `mapstructure:"prometheus"`
	OTLP            OTLPConfig       `mapstructure:"otlp"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console exporter configuration
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// LoadConfig loads configuration from defaults, a config file and the
// environment, then resolves the prompt templates once.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BETTERATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment variables: %w", err)
	}

	v.SetConfigName("betterats")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/betterats/")
	v.AddConfigPath("$HOME/.betterats")
	v.AddConfigPath(".")

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileUsed = v.ConfigFileUsed()
	}

	return loadFromViper(v, configFileUsed)
}

func loadFromViper(v *viper.Viper, configFileUsed string) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyFallbacks()
	config.logConfigurationSources(configFileUsed)

	if err := config.validatePromptFiles(); err != nil {
		return nil, fmt.Errorf("prompt file validation failed: %w", err)
	}

	templates, err := config.loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	config.templates = templates

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.AI.Provider != "gemini" {
		return fmt.Errorf("unsupported AI provider: %s", c.AI.Provider)
	}
	for name, op := range map[string]OperationAIConfig{
		"candidateData": c.AI.CandidateData,
		"assessment":    c.AI.Assessment,
	} {
		if op.Provider != "" && op.Provider != "gemini" {
			return fmt.Errorf("unsupported AI provider for %s: %s", name, op.Provider)
		}
		if op.CircuitBreaker.Enabled && (op.CircuitBreaker.FailureThreshold <= 0 || op.CircuitBreaker.FailureThreshold > 1) {
			return fmt.Errorf("circuit breaker failure threshold for %s must be in (0, 1]", name)
		}
	}

	if c.Pipeline.MaxWorkers < 1 {
		return fmt.Errorf("pipeline.maxWorkers must be a positive integer, got %d", c.Pipeline.MaxWorkers)
	}
	if c.Pipeline.MaxFileSize < 0 {
		return fmt.Errorf("pipeline.maxFileSize cannot be negative")
	}

	switch c.App.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.App.LogLevel)
	}
	if !slices.Contains(c.App.SupportedFormats, c.App.DefaultFormat) {
		return fmt.Errorf("default format %q is not among supported formats %v", c.App.DefaultFormat, c.App.SupportedFormats)
	}

	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RequestsPerMin <= 0 || c.Server.RateLimit.BurstCapacity <= 0) {
		return fmt.Errorf("rate limit requestsPerMin and burstCapacity must be positive when enabled")
	}
	if rate := c.Observability.Tracing.SampleRate; rate < 0 || rate > 1 {
		return fmt.Errorf("tracing sample rate must be between 0 and 1, got %v", rate)
	}

	return nil
}
