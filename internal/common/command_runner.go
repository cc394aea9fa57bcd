package common

import (
	"context"
	"fmt"

	"betterats/internal/ai"
	"betterats/internal/config"
	"betterats/internal/documents"
	"betterats/internal/errors"
	"betterats/internal/observability"
	"betterats/internal/pipeline"
	"betterats/internal/types"
)

// Processor runs an application through the pipeline.
type Processor interface {
	Process(ctx context.Context, paths []string, requirements []string) (*types.ProcessResult, error)
}

// Pipeline bundles the coordinator with the parts the server and the
// watcher also need to reach.
type Pipeline struct {
	Coordinator *pipeline.Coordinator
	Loader      *documents.Loader
	Generators  *ai.Generators
}

// BuildPipeline wires the loader, the model providers and the pipeline
// stages from cfg. metrics may be nil.
func BuildPipeline(ctx context.Context, cfg *config.Config, logger *errors.Logger, metrics *observability.Metrics) (*Pipeline, error) {
	generators, err := ai.NewGenerators(ctx, cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	loader := documents.NewLoader(logger, documents.WithMaxFileSize(cfg.Pipeline.MaxFileSize))
	templates := cfg.Templates()

	extractor := pipeline.NewExtractor(generators.CandidateData, templates.CandidateData, logger, metrics)
	assessor := pipeline.NewAssessor(generators.Assessment, templates.Assessment, cfg.Pipeline.MaxWorkers, logger, metrics)

	return &Pipeline{
		Coordinator: pipeline.NewCoordinator(loader, extractor, assessor, logger, metrics),
		Loader:      loader,
		Generators:  generators,
	}, nil
}

// RunProcessCommand validates the input files, runs them through p and
// hands the result to the output handler.
func RunProcessCommand(
	ctx context.Context,
	p Processor,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	files []string,
	requirements []string,
) error {
	fileProcessor := NewFileProcessor(logger)
	outputHandler := NewOutputHandler(logger)

	if err := fileProcessor.ValidateInputFiles(files...); err != nil {
		return err
	}
	if err := fileProcessor.ValidateOutputFile(cmdConfig.OutputFile); err != nil {
		return err
	}

	logger.Info("Processing application",
		"files", len(files),
		"requirements", len(requirements),
		"format", cmdConfig.OutputFormat)

	result, err := p.Process(ctx, files, requirements)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("pipeline returned no result")
	}

	return outputHandler.HandleOutput(*result, cmdConfig)
}
