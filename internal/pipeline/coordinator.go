package pipeline

import (
	"context"
	"strings"
	"time"

	"betterats/internal/errors"
	"betterats/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// DocumentLoader turns file paths into documents.
type DocumentLoader interface {
	Load(ctx context.Context, paths []string) ([]types.Document, error)
}

// Coordinator runs a full application through the pipeline: documents are
// loaded once, then extraction and assessment run concurrently.
type Coordinator struct {
	loader    DocumentLoader
	extractor *Extractor
	assessor  *Assessor
	logger    *errors.Logger
	observer  Observer
}

// NewCoordinator wires the stages together.
func NewCoordinator(loader DocumentLoader, extractor *Extractor, assessor *Assessor, logger *errors.Logger, observer Observer) *Coordinator {
	if logger == nil {
		logger = discardLogger()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Coordinator{
		loader:    loader,
		extractor: extractor,
		assessor:  assessor,
		logger:    logger,
		observer:  observer,
	}
}

// Process loads paths and returns the candidate profile together with one
// assessment per requirement. Either task failing fails the whole call.
func (c *Coordinator) Process(ctx context.Context, paths []string, requirements []string) (*types.ProcessResult, error) {
	if err := validateRequirements(requirements); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("betterats.pipeline").Start(ctx, "pipeline.process")
	defer span.End()
	span.SetAttributes(
		attribute.Int("pipeline.files", len(paths)),
		attribute.Int("pipeline.requirements", len(requirements)),
	)

	start := time.Now()
	docs, err := c.loader.Load(ctx, paths)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "document loading failed")
		return nil, err
	}
	c.observer.RecordDocumentsLoaded(ctx, len(docs))
	span.SetAttributes(attribute.Int("pipeline.documents", len(docs)))

	result := &types.ProcessResult{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, err := c.extractor.Extract(gctx, docs)
		if err != nil {
			return err
		}
		result.Candidate = profile
		return nil
	})
	g.Go(func() error {
		assessments, err := c.assessor.Assess(gctx, docs, requirements)
		if err != nil {
			return err
		}
		result.Assessments = assessments
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		return nil, err
	}

	c.logger.Info("Application processed",
		"files", len(paths),
		"documents", len(docs),
		"requirements", len(requirements),
		"duration", time.Since(start).String())
	return result, nil
}

func validateRequirements(requirements []string) error {
	if len(requirements) == 0 {
		return errors.NewRequestError(errors.ErrCodeNoRequirements,
			"at least one job requirement is required", nil)
	}
	for i, r := range requirements {
		if strings.TrimSpace(r) == "" {
			return errors.NewRequestError(errors.ErrCodeInvalidRequest,
				"job requirements must not be blank", nil).WithContext("index", i)
		}
	}
	return nil
}
