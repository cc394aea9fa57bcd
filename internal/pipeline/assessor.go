package pipeline

import (
	"context"

	"betterats/internal/errors"
	"betterats/internal/prompt"
	"betterats/internal/schema"
	"betterats/internal/types"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxWorkers bounds concurrent assessments when none is configured.
const DefaultMaxWorkers = 4

// Assessor decides for each job requirement whether the documents show the
// candidate meets it. Requirements are assessed concurrently.
type Assessor struct {
	generator    Generator
	template     *prompt.Template
	instructions string
	maxWorkers   int
	logger       *errors.Logger
	observer     Observer
}

// NewAssessor creates an assessor running at most maxWorkers model calls at
// once. A nil template selects the built-in one.
func NewAssessor(gen Generator, tmpl *prompt.Template, maxWorkers int, logger *errors.Logger, observer Observer) *Assessor {
	if tmpl == nil {
		tmpl = prompt.DefaultAssessmentTemplate()
	}
	if maxWorkers < 1 {
		maxWorkers = DefaultMaxWorkers
	}
	if logger == nil {
		logger = discardLogger()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Assessor{
		generator:    gen,
		template:     tmpl,
		instructions: schema.FormatInstructions(types.RequirementAssessmentSchema),
		maxWorkers:   maxWorkers,
		logger:       logger,
		observer:     observer,
	}
}

// Assess returns one assessment per requirement, in input order. The first
// failing requirement cancels the rest and is named in the returned error;
// no partial results are returned. All workers have exited when Assess
// returns.
func (a *Assessor) Assess(ctx context.Context, docs []types.Document, requirements []string) ([]types.RequirementAssessment, error) {
	results := make([]types.RequirementAssessment, len(requirements))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxWorkers)

	for i, requirement := range requirements {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			assessment, err := a.assessOne(gctx, docs, requirement)
			if err != nil {
				return errors.NewAssessmentError(i, requirement, err)
			}
			results[i] = assessment
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if !errors.HasType(err, errors.ErrorTypeAssessment) {
			// cancelled before any requirement failed on its own
			return nil, err
		}
		a.logger.LogError(err, "Requirement assessment failed", "requirements", len(requirements))
		return nil, err
	}

	a.logger.Debug("Requirements assessed",
		"requirements", len(requirements),
		"max_workers", a.maxWorkers)
	return results, nil
}

func (a *Assessor) assessOne(ctx context.Context, docs []types.Document, requirement string) (types.RequirementAssessment, error) {
	vars := prompt.Vars{
		prompt.VarFormatInstructions: a.instructions,
		prompt.VarRequirement:        requirement,
		prompt.VarDocuments:          docs,
	}

	assessment, err := runTask[types.RequirementAssessment](ctx, a.generator, a.template, vars, types.RequirementAssessmentSchema)
	if err != nil {
		return types.RequirementAssessment{}, err
	}

	// keyed by the submitted text, whatever the model echoed back
	assessment.Requirement = requirement
	if assessment.PresentInDocuments {
		assessment.Inquiry = nil
	}

	a.observer.RecordRequirementAssessed(ctx, assessment.PresentInDocuments)
	return assessment, nil
}
