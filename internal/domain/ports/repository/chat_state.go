package repository

import (
	"context"

	"telegram-llm-relay/internal/domain/model"
)

// ChatStateRepository persists the whole chat-id → state mapping.
// Save always rewrites the full mapping.
type ChatStateRepository interface {
	Load(ctx context.Context) (model.ChatStates, error)
	Save(ctx context.Context, states model.ChatStates) error
}

// StateTx is exclusive access to one chat's state. Edits to State() become
// visible to others only after Commit; End releases the chat.
type StateTx interface {
	State() *model.UserState
	Commit()
	End()
}

// ChatStateStore hands out per-chat transactions. Transactions on different
// chats never block each other.
type ChatStateStore interface {
	Begin(chatID int64) StateTx
}
