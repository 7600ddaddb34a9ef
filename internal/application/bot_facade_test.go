package application_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"telegram-llm-relay/internal/application"
	"telegram-llm-relay/internal/domain"
	"telegram-llm-relay/internal/infra/i18n"
	"telegram-llm-relay/internal/infra/logging"
	"telegram-llm-relay/internal/usecase"
)

type mockChatUC struct {
	texts    []string
	commands []string
	err      error
}

func (m *mockChatUC) HandleText(ctx context.Context, msg usecase.IncomingMessage) (string, error) {
	m.texts = append(m.texts, msg.Text)
	if m.err != nil {
		return "", m.err
	}
	return "reply to " + msg.Text, nil
}

func (m *mockChatUC) HandleCommand(ctx context.Context, msg usecase.IncomingMessage) (string, error) {
	m.commands = append(m.commands, msg.Text)
	if m.err != nil {
		return "", m.err
	}
	return "ran " + msg.Text, nil
}

func newFacade(t *testing.T, uc usecase.ChatUseCase) *application.BotFacade {
	t.Helper()
	tr, err := i18n.NewDefault("en")
	if err != nil {
		t.Fatalf("load locale: %v", err)
	}
	return application.NewBotFacade(uc, tr, logging.Nop())
}

func in(text string) usecase.IncomingMessage {
	return usecase.IncomingMessage{ChatID: 1, Sender: "Alice", Text: text}
}

func TestHandleMessage_NonText(t *testing.T) {
	uc := &mockChatUC{}
	got := newFacade(t, uc).HandleMessage(context.Background(), in(""))
	if got != "This bot only supports text messages! (for now)" {
		t.Fatalf("got %q", got)
	}
	if len(uc.texts)+len(uc.commands) != 0 {
		t.Fatalf("use case must not be called")
	}
}

func TestHandleMessage_BlankTextIsForwarded(t *testing.T) {
	uc := &mockChatUC{}
	got := newFacade(t, uc).HandleMessage(context.Background(), in("   "))
	if got != "reply to    " {
		t.Fatalf("got %q", got)
	}
	if len(uc.texts) != 1 {
		t.Fatalf("blank text should reach the chat use case, texts=%v", uc.texts)
	}
}

func TestHandleMessage_Routing(t *testing.T) {
	uc := &mockChatUC{}
	f := newFacade(t, uc)
	ctx := context.Background()

	if got := f.HandleMessage(ctx, in("hello")); got != "reply to hello" {
		t.Fatalf("text: %q", got)
	}
	if got := f.HandleMessage(ctx, in("/list")); got != "ran /list" {
		t.Fatalf("command: %q", got)
	}
	if len(uc.texts) != 1 || len(uc.commands) != 1 {
		t.Fatalf("texts=%v commands=%v", uc.texts, uc.commands)
	}
}

func TestHandleMessage_StartAndHelp(t *testing.T) {
	uc := &mockChatUC{}
	f := newFacade(t, uc)
	ctx := context.Background()

	if got := f.HandleMessage(ctx, in("/start")); !strings.Contains(got, "Alice") {
		t.Fatalf("welcome should greet the sender: %q", got)
	}
	help := f.HandleMessage(ctx, in("/help"))
	for _, c := range usecase.Commands {
		if !strings.Contains(help, "/"+c.Command+" - "+c.Description) {
			t.Fatalf("help is missing /%s:\n%s", c.Command, help)
		}
	}
	if len(uc.commands) != 0 {
		t.Fatalf("/start and /help are answered by the facade")
	}
}

func TestHandleMessage_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"model", fmt.Errorf("model reply: %w: %w", domain.ErrModelFailed, errors.New("timeout")), "Sorry, something went wrong talking to the model. Please try again."},
		{"other", errors.New("boom"), "Sorry, something went wrong. Please try again."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFacade(t, &mockChatUC{err: tc.err})
			if got := f.HandleMessage(context.Background(), in("hi")); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
