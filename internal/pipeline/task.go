// Package pipeline turns loaded documents into a candidate profile and
// per-requirement assessments by driving the language model.
package pipeline

import (
	"context"
	"io"
	"log/slog"

	"betterats/internal/errors"
	"betterats/internal/prompt"
	"betterats/internal/reply"
	"betterats/internal/schema"
)

// Generator produces the raw model reply for a rendered prompt.
type Generator interface {
	Generate(ctx context.Context, messages []prompt.Message) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, messages []prompt.Message) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, messages []prompt.Message) (string, error) {
	return f(ctx, messages)
}

// Observer is notified of pipeline outcomes. *observability.Metrics
// implements it and accepts a nil receiver.
type Observer interface {
	RecordDocumentsLoaded(ctx context.Context, count int)
	RecordRequirementAssessed(ctx context.Context, present bool)
	RecordCandidateExtracted(ctx context.Context, success bool)
}

type nopObserver struct{}

func (nopObserver) RecordDocumentsLoaded(context.Context, int)      {}
func (nopObserver) RecordRequirementAssessed(context.Context, bool) {}
func (nopObserver) RecordCandidateExtracted(context.Context, bool)  {}

func discardLogger() *errors.Logger {
	return errors.NewLoggerWithWriter(io.Discard, slog.LevelError)
}

// runTask renders tmpl with vars, asks gen for a reply and parses it into T
// according to s. vars must already carry format instructions for s.
func runTask[T any](ctx context.Context, gen Generator, tmpl *prompt.Template, vars prompt.Vars, s schema.Schema) (T, error) {
	var zero T

	messages, err := tmpl.Render(vars)
	if err != nil {
		return zero, err
	}

	raw, err := gen.Generate(ctx, messages)
	if err != nil {
		if !errors.HasType(err, errors.ErrorTypeGeneration) && ctx.Err() == nil {
			err = errors.NewGenerationError(errors.ErrCodeGenerationFailed, "generation failed", err)
		}
		return zero, err
	}

	return reply.Parse[T](raw, s)
}
