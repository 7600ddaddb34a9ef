package ai

import (
	"context"

	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Model = (*limitedAI)(nil)

type limitedAI struct {
	inner adapter.Model
	sem   chan struct{}
}

// NewLimitedAI caps the number of in-flight calls to inner. Waiting callers
// give up when their context ends.
func NewLimitedAI(inner adapter.Model, maxConcurrent int) adapter.Model {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) Name() string { return l.inner.Name() }

func (l *limitedAI) Reply(ctx context.Context, conv *model.Conversation) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.Reply(ctx, conv)
}

func (l *limitedAI) Description(ctx context.Context, conv *model.Conversation) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.Description(ctx, conv)
}

func (l *limitedAI) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedAI) release() { <-l.sem }
