package usecase

import (
	"fmt"
	"strings"

	"telegram-llm-relay/internal/domain"
	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/domain/ports/adapter"
)

// Commands is the menu registered with Telegram. /start and /help are answered
// by the facade; the rest go through HandleCommand.
var Commands = []adapter.BotCommand{
	{Command: "reset", Description: "Resets the conversation and system message"},
	{Command: "redo", Description: "Forces the bot to re-type the last message"},
	{Command: "system", Description: "Set the system message for current conversation"},
	{Command: "help", Description: "Show a list of commands and brief descriptions"},
	{Command: "rename", Description: "Rename conversation"},
	{Command: "desc", Description: "Update description of conversation"},
	{Command: "new", Description: "Start a new conversation"},
	{Command: "list", Description: "List all conversations"},
}

type CommandKind int

const (
	// ReplyToUser needs no further action besides sending Text.
	ReplyToUser CommandKind = iota
	// RegenerateLastMessage asks the caller to get a new model reply for Conversation.
	RegenerateLastMessage
	// GenerateDescription asks the caller to describe Conversation and store the result.
	GenerateDescription
)

func (k CommandKind) String() string {
	switch k {
	case ReplyToUser:
		return "reply"
	case RegenerateLastMessage:
		return "regenerate"
	case GenerateDescription:
		return "describe"
	default:
		return "unknown"
	}
}

// CommandResult is the directive produced by HandleCommand.
type CommandResult struct {
	Kind CommandKind
	Text string
	// Conversation points into the state passed to HandleCommand.
	Conversation *model.Conversation
}

func reply(text string) CommandResult {
	return CommandResult{Kind: ReplyToUser, Text: text}
}

const (
	msgReset         = "Conversation reset!"
	msgNewStarted    = "New conversation started"
	msgNoneYet       = "You have no conversations yet."
	msgSystemSet     = "System message set!"
	msgSystemMissing = "Please set a system message with `/system [system message]`."
	msgRedoRefused   = "Can only /redo if the last message is the bot's!"
)

// HandleCommand applies a slash command to state and tells the caller what to do next.
// It performs no I/O. The caller must hold exclusive access to state.
func HandleCommand(text string, state *model.UserState) (CommandResult, error) {
	if !strings.HasPrefix(text, "/") {
		return CommandResult{}, domain.ErrNotACommand
	}
	cmd, rest, _ := strings.Cut(text, " ")

	needsConversation := reply(fmt.Sprintf("Command `%s` requires you to be in a conversation!", cmd))

	switch cmd {
	case "/reset":
		conv := state.GetCurrentConversation()
		if conv == nil {
			return needsConversation, nil
		}
		conv.Reset()
		return reply(msgReset), nil

	case "/rename":
		conv := state.GetOrCreateConversation()
		conv.Name = rest
		return reply(fmt.Sprintf("Set current conversation name to \"%s\"!", rest)), nil

	case "/desc":
		conv := state.GetCurrentConversation()
		if conv == nil {
			return needsConversation, nil
		}
		return CommandResult{Kind: GenerateDescription, Conversation: conv}, nil

	case "/new":
		state.ClearCurrentConversation()
		return reply(msgNewStarted), nil

	case "/list":
		if len(state.Conversations) == 0 {
			return reply(msgNoneYet), nil
		}
		lines := make([]string, 0, len(state.Conversations))
		for i := range state.Conversations {
			lines = append(lines, state.Conversations[i].String())
		}
		return reply(strings.Join(lines, "\n\n")), nil

	case "/system":
		conv := state.GetCurrentConversation()
		if conv == nil {
			return needsConversation, nil
		}
		if rest == "" {
			return reply(msgSystemMissing), nil
		}
		system := rest
		conv.System = &system
		return reply(msgSystemSet), nil

	case "/redo":
		conv := state.GetCurrentConversation()
		if conv == nil {
			return needsConversation, nil
		}
		last, ok := conv.LastMessage()
		if !ok || !last.From.IsAssistant() {
			return reply(msgRedoRefused), nil
		}
		conv.PopLast()
		return CommandResult{Kind: RegenerateLastMessage, Conversation: conv}, nil

	default:
		return reply(fmt.Sprintf("Unknown command %s.", cmd)), nil
	}
}
