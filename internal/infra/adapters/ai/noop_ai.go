package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/domain/ports/adapter"
)

var _ adapter.Model = (*NoopAIAdapter)(nil)

// NoopAIAdapter answers without a network call, for local runs and demos.
type NoopAIAdapter struct {
	delay time.Duration
	log   *zerolog.Logger
}

func NewNoopAIAdapter(delay time.Duration, logger *zerolog.Logger) *NoopAIAdapter {
	aiLog := logger.With().Str("component", "NoopAI").Logger()
	return &NoopAIAdapter{delay: delay, log: &aiLog}
}

func (a *NoopAIAdapter) Name() string { return "noop" }

// Reply echoes the last message.
func (a *NoopAIAdapter) Reply(ctx context.Context, conv *model.Conversation) (string, error) {
	if err := a.wait(ctx); err != nil {
		return "", err
	}
	last, ok := conv.LastMessage()
	if !ok {
		return "(noop) nothing to reply to", nil
	}
	a.log.Debug().Int("messages", len(conv.Messages)).Msg("noop reply")
	return "(noop) you said: " + last.Content, nil
}

func (a *NoopAIAdapter) Description(ctx context.Context, conv *model.Conversation) (string, error) {
	if err := a.wait(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("A conversation with %d messages", len(conv.Messages)), nil
}

func (a *NoopAIAdapter) wait(ctx context.Context) error {
	if a.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(a.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
