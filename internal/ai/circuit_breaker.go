package ai

import (
	"context"
	stderrors "errors"
	"fmt"

	"betterats/internal/config"
	"betterats/internal/errors"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// GenerationBreaker guards generation calls of one operation with a circuit
// breaker. A nil *GenerationBreaker runs calls unguarded.
type GenerationBreaker struct {
	cb *gobreaker.CircuitBreaker[*genai.GenerateContentResponse]
}

// NewGenerationBreaker creates a breaker from the operation's settings, or
// returns nil when the breaker is disabled.
func NewGenerationBreaker(operation string, cfg config.CircuitBreakerConfig, logger *errors.Logger) *GenerationBreaker {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("AI-%s", operation),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureThreshold
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Info("Circuit breaker state changed",
				"name", name,
				"operation", operation,
				"from", from.String(),
				"to", to.String(),
				"failure_threshold", cfg.FailureThreshold)
		},
	}

	return &GenerationBreaker{
		cb: gobreaker.NewCircuitBreaker[*genai.GenerateContentResponse](settings),
	}
}

// isBreakerSuccess keeps calls abandoned by the caller out of the failure
// count.
func isBreakerSuccess(err error) bool {
	return err == nil || stderrors.Is(err, context.Canceled)
}

// Execute executes the provided function with circuit breaker protection
func (b *GenerationBreaker) Execute(fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	if b == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// Stats returns circuit breaker statistics
func (b *GenerationBreaker) Stats() map[string]any {
	if b == nil {
		return map[string]any{"enabled": false}
	}

	counts := b.cb.Counts()
	return map[string]any{
		"enabled": true,
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts": map[string]uint32{
			"requests":              counts.Requests,
			"total_successes":       counts.TotalSuccesses,
			"total_failures":        counts.TotalFailures,
			"consecutive_successes": counts.ConsecutiveSuccesses,
			"consecutive_failures":  counts.ConsecutiveFailures,
		},
	}
}

// IsHealthy reports whether the breaker is closed
func (b *GenerationBreaker) IsHealthy() bool {
	if b == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}
