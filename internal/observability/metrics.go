package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Metrics holds the custom instruments of the service
type Metrics struct {
	// Generation backend
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AIErrorCount     metric.Int64Counter
	AITokenUsage     metric.Int64Histogram

	// Pipeline
	DocumentsLoaded      metric.Int64Counter
	RequirementsAssessed metric.Int64Counter
	CandidatesExtracted  metric.Int64Counter

	// Server
	RateLimitHits metric.Int64Counter
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// GenerationResult is what a tracked generation call reports back.
type GenerationResult struct {
	Error      error
	TokenUsage *TokenUsage
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.AIProcessingTime, err = meter.Float64Histogram(
		"betterats_ai_processing_duration",
		metric.WithDescription("Time spent waiting for the language model"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create AI processing time metric: %w", err)
	}

	if m.AIRequestCount, err = meter.Int64Counter(
		"betterats_ai_requests_total",
		metric.WithDescription("Total number of language model requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create AI request count metric: %w", err)
	}

	if m.AIErrorCount, err = meter.Int64Counter(
		"betterats_ai_errors_total",
		metric.WithDescription("Total number of failed language model requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create AI error count metric: %w", err)
	}

	if m.AITokenUsage, err = meter.Int64Histogram(
		"betterats_ai_tokens_total",
		metric.WithDescription("Token usage per language model request"),
		metric.WithUnit("tokens"),
	); err != nil {
		return nil, fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	if m.DocumentsLoaded, err = meter.Int64Counter(
		"betterats_documents_loaded_total",
		metric.WithDescription("Total number of documents extracted"),
	); err != nil {
		return nil, fmt.Errorf("failed to create documents loaded metric: %w", err)
	}

	if m.RequirementsAssessed, err = meter.Int64Counter(
		"betterats_requirements_assessed_total",
		metric.WithDescription("Total number of requirements assessed"),
	); err != nil {
		return nil, fmt.Errorf("failed to create requirements assessed metric: %w", err)
	}

	if m.CandidatesExtracted, err = meter.Int64Counter(
		"betterats_candidates_extracted_total",
		metric.WithDescription("Total number of candidate profiles extracted"),
	); err != nil {
		return nil, fmt.Errorf("failed to create candidates extracted metric: %w", err)
	}

	if m.RateLimitHits, err = meter.Int64Counter(
		"betterats_rate_limit_hits_total",
		metric.WithDescription("Total number of requests rejected by the rate limiter"),
	); err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return m, nil
}

// TrackGeneration runs fn and records its duration, outcome and token usage
// under the given operation. A nil Metrics just runs fn.
func (m *Metrics) TrackGeneration(ctx context.Context, operation string, fn func(context.Context) *GenerationResult) error {
	start := time.Now()
	result := fn(ctx)
	duration := time.Since(start).Seconds()

	var err error
	if result != nil {
		err = result.Error
	}
	if m == nil {
		return err
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}
	m.AIProcessingTime.Record(ctx, duration, metric.WithAttributes(attrs...))
	m.AIRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.AIErrorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	if result != nil && result.TokenUsage != nil {
		m.recordTokenUsage(ctx, operation, result.TokenUsage)
		oteltrace.SpanFromContext(ctx).SetAttributes(
			attribute.Int64("ai.tokens.input", result.TokenUsage.InputTokens),
			attribute.Int64("ai.tokens.output", result.TokenUsage.OutputTokens),
			attribute.Int64("ai.tokens.total", result.TokenUsage.TotalTokens),
		)
	}

	return err
}

func (m *Metrics) recordTokenUsage(ctx context.Context, operation string, usage *TokenUsage) {
	for _, tt := range []struct {
		tokenType string
		value     int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	} {
		m.AITokenUsage.Record(ctx, tt.value, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("token_type", tt.tokenType),
		))
	}
}

// RecordDocumentsLoaded counts documents extracted by one load call.
func (m *Metrics) RecordDocumentsLoaded(ctx context.Context, count int) {
	if m == nil || count == 0 {
		return
	}
	m.DocumentsLoaded.Add(ctx, int64(count))
}

// RecordRequirementAssessed counts one finished assessment.
func (m *Metrics) RecordRequirementAssessed(ctx context.Context, present bool) {
	if m == nil {
		return
	}
	m.RequirementsAssessed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("present", present)))
}

// RecordCandidateExtracted counts one extraction attempt.
func (m *Metrics) RecordCandidateExtracted(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.CandidatesExtracted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordRateLimitHit counts a rejected request.
func (m *Metrics) RecordRateLimitHit(ctx context.Context, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attrs...))
}
