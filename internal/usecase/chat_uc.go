package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/domain"
	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/domain/ports/adapter"
	"telegram-llm-relay/internal/domain/ports/repository"
	"telegram-llm-relay/internal/infra/logging"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// IncomingMessage is a platform-neutral inbound text message.
type IncomingMessage struct {
	ChatID  int64
	Sender  string
	Text    string
	IsGroup bool
}

type ChatUseCase interface {
	// HandleText appends the message to the active conversation (starting one
	// if needed) and returns the model's reply.
	HandleText(ctx context.Context, msg IncomingMessage) (string, error)
	// HandleCommand runs a slash command and any model call it asks for.
	HandleCommand(ctx context.Context, msg IncomingMessage) (string, error)
}

type chatUC struct {
	states repository.ChatStateStore
	ai     adapter.Model
	bot    adapter.TelegramBotAdapter
	typing time.Duration
	log    *zerolog.Logger
	dev    bool
}

// NewChatUseCase wires the message handler. bot may be nil, in which case no
// typing indicator is shown.
func NewChatUseCase(states repository.ChatStateStore, ai adapter.Model, bot adapter.TelegramBotAdapter, typingInterval time.Duration, logger *zerolog.Logger, dev bool) *chatUC {
	if typingInterval <= 0 {
		typingInterval = 4 * time.Second
	}
	ucLog := logger.With().Str("component", "ChatUC").Logger()
	return &chatUC{states: states, ai: ai, bot: bot, typing: typingInterval, log: &ucLog, dev: dev}
}

func (c *chatUC) HandleText(ctx context.Context, msg IncomingMessage) (string, error) {
	log := logging.With(ctx, c.log)
	defer logging.TraceDuration(log, "ChatUC.HandleText")()

	tx := c.states.Begin(msg.ChatID)
	defer tx.End()

	conv := tx.State().GetOrCreateConversation()
	content := msg.Text
	if msg.IsGroup {
		content = msg.Sender + ": " + msg.Text
	}
	conv.Append(model.NewUserMessage(msg.Sender, content))
	log.Debug().Str("from", msg.Sender).Str("text", logging.Redact(msg.Text, c.dev)).Msg("user message")

	reply, err := c.reply(ctx, msg.ChatID, conv)
	if err != nil {
		return "", err
	}
	conv.Append(model.NewAssistantMessage(reply))
	tx.Commit()
	log.Debug().Str("text", logging.Redact(reply, c.dev)).Msg("bot reply")
	return reply, nil
}

func (c *chatUC) HandleCommand(ctx context.Context, msg IncomingMessage) (string, error) {
	log := logging.With(ctx, c.log)
	defer logging.TraceDuration(log, "ChatUC.HandleCommand")()

	tx := c.states.Begin(msg.ChatID)
	defer tx.End()

	res, err := HandleCommand(msg.Text, tx.State())
	if err != nil {
		return "", err
	}
	log.Debug().Str("directive", res.Kind.String()).Msg("command handled")

	switch res.Kind {
	case ReplyToUser:
		tx.Commit()
		return res.Text, nil

	case RegenerateLastMessage:
		reply, err := c.reply(ctx, msg.ChatID, res.Conversation)
		if err != nil {
			return "", err
		}
		res.Conversation.Append(model.NewAssistantMessage(reply))
		tx.Commit()
		return reply, nil

	case GenerateDescription:
		desc, err := c.withTyping(ctx, msg.ChatID, func(ctx context.Context) (string, error) {
			return c.ai.Description(ctx, res.Conversation)
		})
		if err != nil {
			return "", fmt.Errorf("describe conversation: %w: %w", domain.ErrModelFailed, err)
		}
		res.Conversation.Description = &desc
		tx.Commit()
		return "Description updated: " + desc, nil

	default:
		return "", errors.New("unhandled command directive")
	}
}

func (c *chatUC) reply(ctx context.Context, chatID int64, conv *model.Conversation) (string, error) {
	reply, err := c.withTyping(ctx, chatID, func(ctx context.Context) (string, error) {
		return c.ai.Reply(ctx, conv)
	})
	if err != nil {
		return "", fmt.Errorf("model reply: %w: %w", domain.ErrModelFailed, err)
	}
	return reply, nil
}
