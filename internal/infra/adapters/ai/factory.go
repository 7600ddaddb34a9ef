package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/config"
	"telegram-llm-relay/internal/domain/ports/adapter"
)

// New builds the configured backend wrapped, from the outside in, with the
// concurrency limiter, the circuit breaker and call instrumentation.
func New(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.Model, error) {
	var (
		base adapter.Model
		err  error
	)
	switch cfg.Provider {
	case "openai":
		base, err = NewOpenAIAdapter(OpenAIOptions{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			APIToken:   cfg.APIToken,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}, logger)
	case "gemini":
		base, err = NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.Model)
	case "noop":
		base = NewNoopAIAdapter(0, logger)
	default:
		err = fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	m := NewInstrumentedAI(base, logger)
	m = NewBreakerAI(m, BreakerOptions{
		MaxFailures: cfg.Breaker.MaxFailures,
		Timeout:     cfg.Breaker.Timeout,
		Interval:    cfg.Breaker.Interval,
	}, logger)
	m = NewLimitedAI(m, cfg.ConcurrentLimit)

	logger.Info().Str("provider", base.Name()).Str("model", cfg.Model).Msg("model backend ready")
	return m, nil
}
