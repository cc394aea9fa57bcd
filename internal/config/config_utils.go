package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyFallbacks fills values that cannot be expressed as viper defaults
func (c *Config) applyFallbacks() {
	c.applyServerAPIKeyFallbacks()
	c.applyObservabilityDefaults()
}

// applyServerAPIKeyFallbacks reads a comma separated key list from the environment
func (c *Config) applyServerAPIKeyFallbacks() {
	if len(c.Server.APIKeys) == 0 {
		if apiKeysEnv := os.Getenv("BETTERATS_SERVER_APIKEYS"); apiKeysEnv != "" {
			c.Server.APIKeys = splitAndTrim(apiKeysEnv)
		}
	}
}

func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}
}

func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults and environment)")
	}

	envVars := []string{
		"BETTERATS_AI_APIKEY",
		"BETTERATS_AI_MODEL",
		"BETTERATS_APP_LOGLEVEL",
		"BETTERATS_VAULT_ENABLED",
		"GEMINI_API_KEY",
		"MAX_WORKERS",
		"ASSESSMENT_MODEL",
		"CANDIDATE_DATA_MODEL",
		"UPLOAD_TMP_DIR",
	}
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if strings.Contains(strings.ToLower(envVar), "key") {
				value = "***MASKED***"
			}
			log.Printf("[CONFIG]   %s=%s", envVar, value)
		}
	}

	apiKeyState := "***NOT SET***"
	if c.AI.APIKey != "" {
		apiKeyState = "***CONFIGURED***"
	}
	log.Printf("[CONFIG] AI Provider: %s, Model: %s, API Key: %s", c.AI.Provider, c.AI.Model, apiKeyState)
	log.Printf("[CONFIG] Candidate data model: %s", orDefault(c.AI.CandidateData.Model, c.AI.Model))
	log.Printf("[CONFIG] Assessment model: %s", orDefault(c.AI.Assessment.Model, c.AI.Model))
	log.Printf("[CONFIG] Max workers: %d", c.Pipeline.MaxWorkers)
	log.Printf("[CONFIG] Vault Enabled: %t, Observability Enabled: %t", c.Vault.Enabled, c.Observability.Enabled)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
