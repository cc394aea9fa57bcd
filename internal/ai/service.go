package ai

import (
	"context"
	"fmt"

	"betterats/internal/config"
	"betterats/internal/errors"
	"betterats/internal/observability"
	"betterats/internal/schema"
	"betterats/internal/types"
)

// Generators holds one provider per task kind, each with its own model,
// breaker and retry settings.
type Generators struct {
	CandidateData *GeminiProvider
	Assessment    *GeminiProvider
}

// NewGenerators creates the providers of both operations from cfg.
func NewGenerators(ctx context.Context, cfg *config.Config, logger *errors.Logger, metrics *observability.Metrics) (*Generators, error) {
	candidate, err := newOperationProvider(ctx, cfg, config.OperationCandidateData, logger, metrics)
	if err != nil {
		return nil, err
	}
	assessment, err := newOperationProvider(ctx, cfg, config.OperationAssessment, logger, metrics)
	if err != nil {
		return nil, err
	}
	return &Generators{CandidateData: candidate, Assessment: assessment}, nil
}

func newOperationProvider(ctx context.Context, cfg *config.Config, operation string, logger *errors.Logger, metrics *observability.Metrics) (*GeminiProvider, error) {
	opCfg, err := cfg.GetOperationConfig(operation)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, err.Error(), err)
	}

	logger.Debug("Initializing AI provider",
		"provider", opCfg.Provider,
		"operation", operation,
		"model", opCfg.Model,
		"temperature", *opCfg.Temperature,
		"timeout", *opCfg.Timeout,
		"max_retries", *opCfg.MaxRetries,
		"use_system_prompts", *opCfg.UseSystemPrompts,
		"structured_output", *opCfg.StructuredOutput)

	switch opCfg.Provider {
	case "gemini":
		return NewGeminiProvider(ctx, opCfg, operation, logger,
			WithResponseSchema(responseSchemaFor(operation)),
			WithMetrics(metrics))
	default:
		return nil, errors.NewConfigError(errors.ErrCodeUnsupportedProvider,
			fmt.Sprintf("unsupported AI provider: %s", opCfg.Provider), nil)
	}
}

func responseSchemaFor(operation string) schema.Schema {
	if operation == config.OperationCandidateData {
		return types.CandidateProfileSchema
	}
	return types.RequirementAssessmentSchema
}

// Stats reports the breaker state of both providers.
func (g *Generators) Stats() map[string]any {
	return map[string]any{
		config.OperationCandidateData: g.CandidateData.Stats(),
		config.OperationAssessment:    g.Assessment.Stats(),
	}
}
