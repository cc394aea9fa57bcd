// Package ai adapts the Gemini API to the pipeline's text generator.
package ai

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"betterats/internal/config"
	"betterats/internal/errors"
	"betterats/internal/observability"
	"betterats/internal/prompt"
	"betterats/internal/schema"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// contentGenerator is the subset of genai.Models the provider calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider generates replies for one operation with Google Gemini
type GeminiProvider struct {
	models         contentGenerator
	config         config.OperationAIConfig
	operation      string
	responseSchema *schema.Schema
	breaker        *GenerationBreaker
	metrics        *observability.Metrics
	logger         *errors.Logger
	retryBaseDelay time.Duration
}

// Option configures a GeminiProvider.
type Option func(*GeminiProvider)

// WithResponseSchema asks the API for JSON constrained to s when structured
// output is enabled for the operation.
func WithResponseSchema(s schema.Schema) Option {
	return func(g *GeminiProvider) { g.responseSchema = &s }
}

// WithMetrics records every generation call on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *GeminiProvider) { g.metrics = m }
}

// NewGeminiProvider creates a Gemini provider instance for a specific operation.
// cfg must be a resolved operation config, see config.GetOperationConfig.
func NewGeminiProvider(ctx context.Context, cfg config.OperationAIConfig, operation string, logger *errors.Logger, opts ...Option) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			fmt.Sprintf("no Gemini API key configured for %s", operation), nil)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: derefDuration(cfg.Timeout, 60*time.Second)},
	})
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to create Gemini client", err)
	}

	return newGeminiProvider(client.Models, cfg, operation, logger, opts...), nil
}

func newGeminiProvider(models contentGenerator, cfg config.OperationAIConfig, operation string, logger *errors.Logger, opts ...Option) *GeminiProvider {
	if logger == nil {
		logger = errors.NewLoggerWithWriter(io.Discard, slog.LevelError)
	}
	g := &GeminiProvider{
		models:         models,
		config:         cfg,
		operation:      operation,
		breaker:        NewGenerationBreaker(operation, cfg.CircuitBreaker, logger),
		logger:         logger,
		retryBaseDelay: time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Operation returns the task kind the provider serves.
func (g *GeminiProvider) Operation() string {
	return g.operation
}

// Model returns the configured model name.
func (g *GeminiProvider) Model() string {
	return g.config.Model
}

// Generate sends messages to the model and returns the raw reply text.
// A system message becomes the system instruction when system prompts are
// enabled and is folded into the user turn otherwise.
func (g *GeminiProvider) Generate(ctx context.Context, messages []prompt.Message) (string, error) {
	ctx, span := otel.Tracer("betterats.ai.gemini").Start(ctx, "gemini."+g.operation)
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.String("ai.operation", g.operation),
		attribute.Int("ai.messages", len(messages)),
	)

	contents, genConfig := g.buildRequest(messages)

	var reply string
	err := g.metrics.TrackGeneration(ctx, g.operation, func(ctx context.Context) *observability.GenerationResult {
		result, err := g.breaker.Execute(func() (*genai.GenerateContentResponse, error) {
			return g.executeWithRetry(ctx, func() (*genai.GenerateContentResponse, error) {
				return g.models.GenerateContent(ctx, g.config.Model, contents, genConfig)
			})
		})
		if err != nil {
			return &observability.GenerationResult{
				Error: errors.NewGenerationError(errors.ErrCodeGenerationFailed,
					fmt.Sprintf("generation for %s failed", g.operation), err),
			}
		}

		usage := extractTokenUsage(result)
		reply = replyText(result)
		if strings.TrimSpace(reply) == "" {
			return &observability.GenerationResult{
				Error: errors.NewGenerationError(errors.ErrCodeEmptyReply,
					fmt.Sprintf("model returned an empty reply for %s", g.operation), nil),
				TokenUsage: usage,
			}
		}
		return &observability.GenerationResult{TokenUsage: usage}
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("success", false))
		return "", err
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("output.reply_length", len(reply)),
	)
	return reply, nil
}

// buildRequest maps role-tagged messages onto Gemini contents and the
// generation config of the operation.
func (g *GeminiProvider) buildRequest(messages []prompt.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	genConfig := &genai.GenerateContentConfig{}
	if temperature := g.config.Temperature; temperature != nil {
		t := *temperature
		genConfig.Temperature = &t
	}
	if g.responseSchema != nil && derefBool(g.config.StructuredOutput, false) {
		genConfig.ResponseMIMEType = "application/json"
		genConfig.ResponseSchema = responseSchema(*g.responseSchema)
	}

	useSystem := derefBool(g.config.UseSystemPrompts, true)
	var system []string
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case prompt.RoleSystem:
			system = append(system, msg.Content)
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	if len(system) > 0 {
		instruction := strings.Join(system, "\n\n")
		if useSystem {
			genConfig.SystemInstruction = genai.NewContentFromText(instruction, genai.RoleUser)
		} else {
			contents = append([]*genai.Content{genai.NewContentFromText(instruction, genai.RoleUser)}, contents...)
		}
	}

	return contents, genConfig
}

// executeWithRetry executes a generation call with retry logic and exponential backoff
func (g *GeminiProvider) executeWithRetry(ctx context.Context, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	maxRetries := 0
	if g.config.MaxRetries != nil {
		maxRetries = *g.config.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying AI operation",
				"operation", g.operation,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(g.backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Info("AI operation succeeded after retry",
					"operation", g.operation,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			g.logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", g.operation,
				"error", err.Error())
			break
		}
	}

	return nil, fmt.Errorf("operation '%s' failed: %w", g.operation, lastErr)
}

// backoff doubles the base delay per attempt, adds up to 10% jitter and caps
// the result at 30 seconds.
func (g *GeminiProvider) backoff(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * g.retryBaseDelay
	jitter := time.Duration(0)
	if jitterMax := int64(float64(baseDelay) * 0.1); jitterMax > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(jitterMax)); err == nil {
			jitter = time.Duration(n.Int64())
		}
	}
	return min(baseDelay+jitter, 30*time.Second)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}

	var genaiErr genai.APIError
	if stderrors.As(err, &genaiErr) {
		return retryableStatus(genaiErr.Code)
	}

	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Stats reports the breaker state of the provider.
func (g *GeminiProvider) Stats() map[string]any {
	return map[string]any{
		"model":           g.config.Model,
		"circuit_breaker": g.breaker.Stats(),
		"healthy":         g.breaker.IsHealthy(),
	}
}

func replyText(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}
	return result.Text()
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *observability.TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &observability.TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}

func derefBool(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

func derefDuration(d *time.Duration, fallback time.Duration) time.Duration {
	if d == nil || *d <= 0 {
		return fallback
	}
	return *d
}
