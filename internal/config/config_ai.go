package config

import (
	"fmt"

	"betterats/internal/prompt"
)

// Operation names as used in config keys.
const (
	OperationCandidateData = prompt.TaskCandidateData
	OperationAssessment    = prompt.TaskAssessment
)

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.UseSystemPrompts == nil {
		useSystem := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &useSystem
	}
	if opCfg.StructuredOutput == nil {
		structured := c.AI.StructuredOutput
		opCfg.StructuredOutput = &structured
	}
}

// GetCandidateDataConfig returns the AI configuration for candidate data
// extraction with fallback to the global config
func (c *Config) GetCandidateDataConfig() OperationAIConfig {
	config := c.AI.CandidateData
	c.applyOperationDefaults(&config)
	return config
}

// GetAssessmentConfig returns the AI configuration for requirement assessment
// with fallback to the global config
func (c *Config) GetAssessmentConfig() OperationAIConfig {
	config := c.AI.Assessment
	c.applyOperationDefaults(&config)
	return config
}

// GetOperationConfig returns the resolved configuration of the named operation.
func (c *Config) GetOperationConfig(operation string) (OperationAIConfig, error) {
	switch operation {
	case OperationCandidateData:
		return c.GetCandidateDataConfig(), nil
	case OperationAssessment:
		return c.GetAssessmentConfig(), nil
	default:
		return OperationAIConfig{}, fmt.Errorf("unknown AI operation: %s", operation)
	}
}
