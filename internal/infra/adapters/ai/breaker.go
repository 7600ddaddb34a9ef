package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"telegram-llm-relay/internal/domain"
	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/domain/ports/adapter"
	"telegram-llm-relay/internal/infra/metrics"
)

const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

type BreakerOptions struct {
	MaxFailures uint32
	Timeout     time.Duration
	Interval    time.Duration
}

var _ adapter.Model = (*BreakerAI)(nil)

// BreakerAI fails fast once the backend has failed MaxFailures times in a row,
// then lets a single trial call through after Timeout.
type BreakerAI struct {
	inner   adapter.Model
	breaker *gobreaker.CircuitBreaker[string]
}

func NewBreakerAI(inner adapter.Model, opts BreakerOptions, logger *zerolog.Logger) *BreakerAI {
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := opts.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}
	cbLog := logger.With().Str("component", "ModelBreaker").Logger()

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "model:" + inner.Name(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cbLog.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
		// A cancelled request says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerAI{inner: inner, breaker: cb}
}

func (b *BreakerAI) Name() string { return b.inner.Name() }

func (b *BreakerAI) State() gobreaker.State { return b.breaker.State() }

func (b *BreakerAI) Reply(ctx context.Context, conv *model.Conversation) (string, error) {
	return b.execute(func() (string, error) { return b.inner.Reply(ctx, conv) })
}

func (b *BreakerAI) Description(ctx context.Context, conv *model.Conversation) (string, error) {
	return b.execute(func() (string, error) { return b.inner.Description(ctx, conv) })
}

func (b *BreakerAI) execute(fn func() (string, error)) (string, error) {
	out, err := b.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.IncCircuitRejected(b.inner.Name())
		return "", fmt.Errorf("provider %q: %w: %w", b.inner.Name(), domain.ErrCircuitOpen, err)
	}
	return out, err
}
