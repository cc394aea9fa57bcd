package observability

import (
	"time"

	"betterats/internal/config"
)

// Settings is the resolved observability configuration of one process.
type Settings struct {
	ServiceName        string
	ServiceVersion     string
	ServiceInstance    string
	Enabled            bool
	TracingEnabled     bool
	MetricsEnabled     bool
	ConsoleOutput      bool
	PrettyPrint        bool
	SampleRate         float64
	CollectionInterval time.Duration
	Prometheus         PrometheusConfig
	OTLP               config.OTLPConfig
}

// SettingsFromConfig derives Settings from the application config. The
// application version is used when no service version is configured.
func SettingsFromConfig(cfg *config.Config, version string) Settings {
	if cfg == nil {
		return Settings{
			ServiceName:        "betterats",
			ServiceVersion:     version,
			Enabled:            true,
			TracingEnabled:     true,
			MetricsEnabled:     true,
			SampleRate:         1.0,
			CollectionInterval: 15 * time.Second,
			Prometheus:         GetPrometheusConfig(nil),
		}
	}

	obs := cfg.Observability
	serviceVersion := obs.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	return Settings{
		ServiceName:        obs.ServiceName,
		ServiceVersion:     serviceVersion,
		ServiceInstance:    obs.ServiceInstance,
		Enabled:            obs.Enabled,
		TracingEnabled:     obs.Tracing.Enabled,
		MetricsEnabled:     obs.Metrics.Enabled,
		ConsoleOutput:      obs.Console.Enabled,
		PrettyPrint:        obs.Console.PrettyPrint,
		SampleRate:         obs.Tracing.SampleRate,
		CollectionInterval: obs.Metrics.CollectionInterval,
		Prometheus:         GetPrometheusConfig(cfg),
		OTLP:               obs.OTLP,
	}
}
