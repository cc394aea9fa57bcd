package pipeline

import (
	"context"

	"betterats/internal/errors"
	"betterats/internal/prompt"
	"betterats/internal/schema"
	"betterats/internal/types"
)

// Extractor pulls a CandidateProfile out of a document set with one model call.
type Extractor struct {
	generator    Generator
	template     *prompt.Template
	instructions string
	logger       *errors.Logger
	observer     Observer
}

// NewExtractor creates an extractor. A nil template selects the built-in one.
func NewExtractor(gen Generator, tmpl *prompt.Template, logger *errors.Logger, observer Observer) *Extractor {
	if tmpl == nil {
		tmpl = prompt.DefaultCandidateTemplate()
	}
	if logger == nil {
		logger = discardLogger()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Extractor{
		generator:    gen,
		template:     tmpl,
		instructions: schema.FormatInstructions(types.CandidateProfileSchema),
		logger:       logger,
		observer:     observer,
	}
}

// Extract returns the candidate profile found in docs. Fields the documents
// do not contain are nil; an empty document set is not an error.
func (e *Extractor) Extract(ctx context.Context, docs []types.Document) (types.CandidateProfile, error) {
	vars := prompt.Vars{
		prompt.VarFormatInstructions: e.instructions,
		prompt.VarDocuments:          docs,
	}

	profile, err := runTask[types.CandidateProfile](ctx, e.generator, e.template, vars, types.CandidateProfileSchema)
	e.observer.RecordCandidateExtracted(ctx, err == nil)
	if err != nil {
		e.logger.LogError(err, "Candidate data extraction failed", "documents", len(docs))
		return types.CandidateProfile{}, err
	}

	if profile.Experiences == nil {
		profile.Experiences = []types.Experience{}
	}
	e.logger.Debug("Candidate data extracted",
		"documents", len(docs),
		"experiences", len(profile.Experiences))
	return profile, nil
}
