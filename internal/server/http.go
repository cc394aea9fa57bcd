package server

import (
	"time"

	"betterats/internal/common"
	"betterats/internal/config"
	"betterats/internal/errors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// StatsProvider reports runtime statistics for the /stats endpoint.
type StatsProvider interface {
	Stats() map[string]any
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	AppConfig *config.Config

	// API Authentication
	APIKeys map[string]bool

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	MaxRequestSize int64
	UploadDir      string
	AllowedOrigins []string

	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	// Processor and Generators are built by Start unless already set.
	Processor  common.Processor
	Generators StatsProvider

	Logger *errors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host            string
	Port            string
	Version         string
	APIKeys         []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxRequestSize  int64
	UploadDir       string
	AllowedOrigins  []string
	RateLimit       *config.RateLimitConfig
}

// ServerConfigFrom copies the server section of cfg.
func ServerConfigFrom(cfg *config.Config, version string) ServerConfig {
	return ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Version:         version,
		APIKeys:         cfg.Server.APIKeys,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxRequestSize:  cfg.Server.MaxRequestSize,
		UploadDir:       cfg.Server.UploadDir,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RateLimit:       &cfg.Server.RateLimit,
	}
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, logger *errors.Logger) *Server {
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity, logger)
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	return &Server{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Version:         cfg.Version,
		AppConfig:       appCfg,
		APIKeys:         apiKeyMap,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: shutdownTimeout,
		MaxRequestSize:  cfg.MaxRequestSize,
		UploadDir:       cfg.UploadDir,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimit:       cfg.RateLimit,
		RateLimiter:     rateLimiter,
		Logger:          logger,
	}
}
