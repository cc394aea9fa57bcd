package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// AI Configuration - Global defaults
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.maxRetries", 3)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.useSystemPrompts", true)
	v.SetDefault("ai.structuredOutput", true)

	// Candidate data extraction copies text verbatim, so keep it cold
	v.SetDefault("ai.candidateData.provider", "gemini")
	v.SetDefault("ai.candidateData.model", "")
	v.SetDefault("ai.candidateData.timeout", 90*time.Second)
	v.SetDefault("ai.candidateData.maxRetries", 2)
	v.SetDefault("ai.candidateData.temperature", 0.0)

	v.SetDefault("ai.assessment.provider", "gemini")
	v.SetDefault("ai.assessment.model", "")
	v.SetDefault("ai.assessment.timeout", 60*time.Second)
	v.SetDefault("ai.assessment.maxRetries", 3)
	v.SetDefault("ai.assessment.temperature", 0.2)

	for _, op := range []string{"candidateData", "assessment"} {
		prefix := "ai." + op + ".circuitBreaker."
		v.SetDefault(prefix+"enabled", true)
		v.SetDefault(prefix+"maxRequests", 3)
		v.SetDefault(prefix+"interval", 60*time.Second)
		v.SetDefault(prefix+"timeout", 60*time.Second)
		v.SetDefault(prefix+"minRequests", 3)
		v.SetDefault(prefix+"failureThreshold", 0.6)

		v.SetDefault("ai."+op+".prompts.system", "")
		v.SetDefault("ai."+op+".prompts.systemFile", "")
		v.SetDefault("ai."+op+".prompts.user", "")
		v.SetDefault("ai."+op+".prompts.userFile", "")
	}

	// Pipeline Configuration
	v.SetDefault("pipeline.maxWorkers", 4)
	v.SetDefault("pipeline.maxFileSize", 10*1024*1024) // 10MB

	// Server Configuration
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Minute) // a request waits for every assessment
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.shutdownTimeout", 30*time.Second)
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.maxRequestSize", 32*1024*1024) // 32MB
	v.SetDefault("server.uploadDir", "/tmp")
	v.SetDefault("server.allowedOrigins", []string{"*"})

	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.geminiKey", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "betterats")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}

// legacyEnv lists the unprefixed variables understood by earlier deployments
// of the service, next to the prefixed name each key already has.
var legacyEnv = map[string][]string{
	"pipeline.maxWorkers":         {"BETTERATS_PIPELINE_MAXWORKERS", "MAX_WORKERS"},
	"ai.assessment.model":         {"BETTERATS_AI_ASSESSMENT_MODEL", "ASSESSMENT_MODEL"},
	"ai.candidateData.model":      {"BETTERATS_AI_CANDIDATEDATA_MODEL", "CANDIDATE_DATA_MODEL"},
	"ai.apiKey":                   {"BETTERATS_AI_APIKEY", "GEMINI_API_KEY"},
	"server.uploadDir":            {"BETTERATS_SERVER_UPLOADDIR", "UPLOAD_TMP_DIR"},
	"server.host":                 {"BETTERATS_SERVER_HOST", "HOST"},
	"server.port":                 {"BETTERATS_SERVER_PORT", "PORT"},
	"observability.otlp.endpoint": {"BETTERATS_OBSERVABILITY_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"},
}

func bindLegacyEnv(v *viper.Viper) error {
	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return err
		}
	}
	return nil
}
