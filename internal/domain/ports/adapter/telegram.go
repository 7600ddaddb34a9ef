// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// BotCommand is one entry of the command menu shown by Telegram clients.
type BotCommand struct {
	Command     string
	Description string
}

type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendTyping(ctx context.Context, chatID int64) error
	SetMenuCommands(ctx context.Context, commands []BotCommand) error
}
