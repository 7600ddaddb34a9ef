package adapter

import (
	"context"

	"telegram-llm-relay/internal/domain/model"
)

// Model is the port for a language-model backend.
type Model interface {
	// Name identifies the backend in logs and metrics, e.g. "openai".
	Name() string

	// Reply returns the model's next assistant turn for the conversation.
	// The conversation's system prompt, if any, is sent first.
	Reply(ctx context.Context, conv *model.Conversation) (string, error)

	// Description returns a one-sentence summary of the conversation.
	// A fixed summarizing instruction replaces the conversation's system prompt.
	Description(ctx context.Context, conv *model.Conversation) (string, error)
}
