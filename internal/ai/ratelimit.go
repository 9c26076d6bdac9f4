package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimitedGenerator struct {
	next    IGenerator
	limiter *rate.Limiter
}

// WithGeneratorLimit throttles calls to next. A nil limiter returns next unchanged.
func WithGeneratorLimit(next IGenerator, limiter *rate.Limiter) IGenerator {
	if limiter == nil || next == nil {
		return next
	}
	return &rateLimitedGenerator{next: next, limiter: limiter}
}

func (g *rateLimitedGenerator) Generate(ctx context.Context, req *Request) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return g.next.Generate(ctx, req)
}

type rateLimitedEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
}

func WithEmbedderLimit(next IEmbedder, limiter *rate.Limiter) IEmbedder {
	if limiter == nil || next == nil {
		return next
	}
	return &rateLimitedEmbedder{next: next, limiter: limiter}
}

func (e *rateLimitedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return e.next.Embed(ctx, text, taskType)
}

func (e *rateLimitedEmbedder) ModelName() string {
	return e.next.ModelName()
}

// NewLimiter returns nil when rps is not positive.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
