package application

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/domain"
	"telegram-llm-relay/internal/infra/i18n"
	"telegram-llm-relay/internal/infra/logging"
	"telegram-llm-relay/internal/usecase"
)

// BotFacade turns one inbound Telegram message into the text to send back.
// It keeps the adapter free of any conversation logic.
type BotFacade struct {
	chat usecase.ChatUseCase
	tr   *i18n.Translator
	log  *zerolog.Logger
}

func NewBotFacade(chat usecase.ChatUseCase, tr *i18n.Translator, logger *zerolog.Logger) *BotFacade {
	facadeLog := logger.With().Str("component", "BotFacade").Logger()
	return &BotFacade{chat: chat, tr: tr, log: &facadeLog}
}

// HandleMessage never fails: errors become a user-facing notice and are logged.
func (b *BotFacade) HandleMessage(ctx context.Context, msg usecase.IncomingMessage) string {
	// Stickers, photos and other non-text updates arrive with no text.
	if msg.Text == "" {
		return b.tr.T("unsupported_message")
	}

	var (
		out string
		err error
	)
	if strings.HasPrefix(msg.Text, "/") {
		cmd, _, _ := strings.Cut(msg.Text, " ")
		switch cmd {
		case "/start":
			return b.tr.T("welcome", msg.Sender)
		case "/help":
			return b.Help()
		}
		out, err = b.chat.HandleCommand(ctx, msg)
	} else {
		out, err = b.chat.HandleText(ctx, msg)
	}
	if err != nil {
		return b.failure(ctx, err)
	}
	return out
}

// Help lists the menu commands, one per line.
func (b *BotFacade) Help() string {
	var sb strings.Builder
	sb.WriteString(b.tr.T("help_header"))
	sb.WriteString("\n/start - ")
	sb.WriteString(b.tr.T("help_start"))
	for _, c := range usecase.Commands {
		sb.WriteString("\n/")
		sb.WriteString(c.Command)
		sb.WriteString(" - ")
		sb.WriteString(c.Description)
	}
	return sb.String()
}

func (b *BotFacade) failure(ctx context.Context, err error) string {
	log := logging.With(ctx, b.log)
	log.Error().Err(err).Msg("handle message failed")
	if errors.Is(err, domain.ErrModelFailed) {
		return b.tr.T("model_failure")
	}
	return b.tr.T("internal_error")
}
