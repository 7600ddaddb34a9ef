package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/config"
	"telegram-llm-relay/internal/domain/ports/adapter"
	"telegram-llm-relay/internal/infra/i18n"
	"telegram-llm-relay/internal/infra/logging"
	"telegram-llm-relay/internal/infra/metrics"
	"telegram-llm-relay/internal/usecase"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// MessageHandler produces the reply for one inbound message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg usecase.IncomingMessage) string
}

// RealTelegramBotAdapter long-polls Telegram and hands messages to a MessageHandler.
type RealTelegramBotAdapter struct {
	bot     *tgbotapi.BotAPI
	tr      *i18n.Translator
	limiter *chatLimiter
	workers int
	log     *zerolog.Logger
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, tr *i18n.Translator, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if tr == nil {
		return nil, errors.New("translator is nil")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	tgLog := logger.With().Str("component", "TelegramBot").Str("bot", bot.Self.UserName).Logger()
	tgLog.Info().Msg("authorized")

	return &RealTelegramBotAdapter{
		bot:     bot,
		tr:      tr,
		limiter: newChatLimiter(cfg.RateLimitPerMin, cfg.RateBurst),
		workers: workers,
		log:     &tgLog,
	}, nil
}

// StartPolling blocks until ctx is cancelled.
// Updates of one chat always go to the same worker so they are handled in
// arrival order; different chats are handled in parallel.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context, handler MessageHandler) error {
	if handler == nil {
		return errors.New("message handler is nil")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	queues := make([]chan tgbotapi.Update, r.workers)
	for i := range queues {
		queues[i] = make(chan tgbotapi.Update, 32)
		wg.Add(1)
		go func(id int, in <-chan tgbotapi.Update) {
			defer wg.Done()
			for up := range in {
				if ctx.Err() != nil {
					continue
				}
				r.handleUpdate(ctx, handler, up)
			}
		}(i, queues[i])
	}

	r.log.Info().Int("workers", r.workers).Msg("polling started")
	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			for _, q := range queues {
				close(q)
			}
			wg.Wait()
			r.log.Info().Msg("polling stopped")
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				cancel()
				continue
			}
			if up.Message == nil {
				continue
			}
			queues[shard(up.Message.Chat.ID, len(queues))] <- up
		}
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, handler MessageHandler, update tgbotapi.Update) {
	msg := update.Message
	chatID := msg.Chat.ID
	ctx = logging.WithTraceID(ctx, ulid.Make().String())
	ctx = logging.WithChatID(ctx, chatID)
	log := logging.With(ctx, r.log)

	text, ok := normalizeCommand(msg.Text, r.bot.Self.UserName)
	if !ok {
		log.Debug().Msg("command addressed to another bot; ignored")
		return
	}
	metrics.IncTelegramCommand(commandLabel(text))

	if !r.limiter.Allow(chatID) {
		metrics.IncRateLimitTriggered()
		log.Info().Msg("rate limited")
		r.send(ctx, chatID, r.tr.T("rate_limited"))
		return
	}

	in := usecase.IncomingMessage{
		ChatID:  chatID,
		Sender:  senderName(msg.From),
		Text:    text,
		IsGroup: msg.Chat.IsGroup() || msg.Chat.IsSuperGroup(),
	}
	reply := handler.HandleMessage(ctx, in)
	r.send(ctx, chatID, reply)
}

func (r *RealTelegramBotAdapter) send(ctx context.Context, chatID int64, text string) {
	if err := r.SendMessage(ctx, chatID, text); err != nil {
		metrics.IncSendFailure()
		logging.With(ctx, r.log).Error().Err(err).Msg("send message failed")
	}
}

// SendMessage sends text, split into several messages when it exceeds
// Telegram's message size limit.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, part := range splitMessage(text, maxMessageRunes) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return err
		}
	}
	return nil
}

func (r *RealTelegramBotAdapter) SendTyping(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

// SetMenuCommands registers the command menu shown by Telegram clients.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context, commands []adapter.BotCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmds := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, c := range commands {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c.Command, Description: c.Description})
	}
	_, err := r.bot.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}

const maxMessageRunes = 4096

// normalizeCommand strips a trailing "@<bot>" from the command token. ok is
// false when the command is addressed to a different bot.
func normalizeCommand(text, botUserName string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return text, true
	}
	token, rest, hasRest := strings.Cut(text, " ")
	cmd, target, addressed := strings.Cut(token, "@")
	if !addressed {
		return text, true
	}
	if botUserName != "" && !strings.EqualFold(target, botUserName) {
		return "", false
	}
	if hasRest {
		return cmd + " " + rest, true
	}
	return cmd, true
}

// senderName is the first and last name, else the username, else UNKNOWN.
func senderName(u *tgbotapi.User) string {
	if u == nil {
		return "UNKNOWN"
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.UserName != "" {
		return u.UserName
	}
	return "UNKNOWN"
}

var knownCommands = func() map[string]struct{} {
	m := map[string]struct{}{"/start": {}, "/help": {}}
	for _, c := range usecase.Commands {
		m["/"+c.Command] = struct{}{}
	}
	return m
}()

// commandLabel keeps the metric label set bounded.
func commandLabel(text string) string {
	if !strings.HasPrefix(text, "/") {
		return "message"
	}
	token, _, _ := strings.Cut(text, " ")
	if _, ok := knownCommands[token]; ok {
		return token
	}
	return "unknown"
}

func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var parts []string
	for len(runes) > limit {
		cut := limit
		// Prefer breaking at the last newline in the window.
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func shard(chatID int64, n int) int {
	return int(uint64(chatID) % uint64(n))
}
