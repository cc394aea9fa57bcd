package observability

import (
	"fmt"
	"net/http"
	"time"

	"betterats/internal/config"
	"betterats/internal/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusConfig holds Prometheus-specific configuration
type PrometheusConfig struct {
	Enabled  bool
	Endpoint string
	Port     string
}

// SetupPrometheusExporter creates a metric reader that registers into its own
// registry and a mux serving that registry on the configured endpoint.
func SetupPrometheusExporter(cfg PrometheusConfig) (metric.Reader, *http.ServeMux, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Endpoint, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return exporter, mux, nil
}

// StartPrometheusServer starts a dedicated HTTP server for Prometheus metrics.
// The returned server is already listening in the background.
func StartPrometheusServer(mux *http.ServeMux, port string, logger *errors.Logger) *http.Server {
	if mux == nil {
		return nil
	}

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogError(err, "Prometheus server error", "addr", server.Addr)
		}
	}()

	return server
}

// GetPrometheusConfig creates Prometheus configuration from provided config
func GetPrometheusConfig(cfg *config.Config) PrometheusConfig {
	if cfg != nil {
		return PrometheusConfig{
			Enabled:  cfg.Observability.Prometheus.Enabled,
			Endpoint: cfg.Observability.Prometheus.Endpoint,
			Port:     cfg.Observability.Prometheus.Port,
		}
	}

	return PrometheusConfig{
		Enabled:  true,
		Endpoint: "/metrics",
		Port:     "9090",
	}
}
