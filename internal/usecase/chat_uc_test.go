package usecase

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"telegram-llm-relay/internal/domain"
	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/domain/ports/adapter"
	"telegram-llm-relay/internal/infra/logging"
	"telegram-llm-relay/internal/infra/store"
)

// ---- Fakes ----

type fakeModel struct {
	mu      sync.Mutex
	replies []string
	err     error
	desc    string
	seen    [][]model.ChatMessage
	delay   time.Duration
}

func (f *fakeModel) Name() string { return "fake" }

func (f *fakeModel) Reply(ctx context.Context, conv *model.Conversation) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, append([]model.ChatMessage(nil), conv.Messages...))
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "ok", nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeModel) Description(ctx context.Context, conv *model.Conversation) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.desc, nil
}

type fakeBot struct {
	typing atomic.Int32
}

func (b *fakeBot) SendMessage(ctx context.Context, chatID int64, text string) error { return nil }
func (b *fakeBot) SendTyping(ctx context.Context, chatID int64) error {
	b.typing.Add(1)
	return nil
}
func (b *fakeBot) SetMenuCommands(ctx context.Context, commands []adapter.BotCommand) error {
	return nil
}

func newTestUC(ai adapter.Model, bot adapter.TelegramBotAdapter) (*chatUC, *store.ChatStore) {
	st := store.NewChatStore(nil, logging.Nop())
	return NewChatUseCase(st, ai, bot, 10*time.Millisecond, logging.Nop(), true), st
}

func msg(text string) IncomingMessage {
	return IncomingMessage{ChatID: 7, Sender: "Alice", Text: text}
}

// ---- Tests ----

func TestConversationScenario_RenameChatRedo(t *testing.T) {
	ctx := context.Background()
	ai := &fakeModel{replies: []string{"Try Lisbon.", "Try Porto."}}
	uc, st := newTestUC(ai, nil)

	out, err := uc.HandleCommand(ctx, msg("/rename Trip Planning"))
	if err != nil || out != `Set current conversation name to "Trip Planning"!` {
		t.Fatalf("rename: %q, %v", out, err)
	}

	out, err = uc.HandleText(ctx, msg("where should I go?"))
	if err != nil || out != "Try Lisbon." {
		t.Fatalf("text: %q, %v", out, err)
	}

	out, err = uc.HandleCommand(ctx, msg("/redo"))
	if err != nil || out != "Try Porto." {
		t.Fatalf("redo: %q, %v", out, err)
	}

	state, ok := st.Get(7)
	if !ok {
		t.Fatalf("state not committed")
	}
	conv := state.GetCurrentConversation()
	if conv == nil || conv.Name != "Trip Planning" {
		t.Fatalf("unexpected conversation %+v", conv)
	}
	want := []model.ChatMessage{
		model.NewUserMessage("Alice", "where should I go?"),
		model.NewAssistantMessage("Try Porto."),
	}
	if !reflect.DeepEqual(conv.Messages, want) {
		t.Fatalf("messages = %+v", conv.Messages)
	}

	// The regenerate call must have seen the transcript without the popped reply.
	if len(ai.seen) != 2 || len(ai.seen[1]) != 1 {
		t.Fatalf("redo should send 1 message to the model, seen %+v", ai.seen)
	}
}

func TestHandleText_ModelFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	ai := &fakeModel{replies: []string{"first"}}
	uc, st := newTestUC(ai, nil)

	if _, err := uc.HandleText(ctx, msg("hello")); err != nil {
		t.Fatal(err)
	}
	before, _ := st.Get(7)

	ai.err = errors.New("upstream down")
	if _, err := uc.HandleText(ctx, msg("again")); !errors.Is(err, domain.ErrModelFailed) {
		t.Fatalf("expected ErrModelFailed, got %v", err)
	}
	after, _ := st.Get(7)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("failed reply mutated state:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestRedo_ModelFailureKeepsOldReply(t *testing.T) {
	ctx := context.Background()
	ai := &fakeModel{replies: []string{"original"}}
	uc, st := newTestUC(ai, nil)
	if _, err := uc.HandleText(ctx, msg("hi")); err != nil {
		t.Fatal(err)
	}

	ai.err = errors.New("boom")
	if _, err := uc.HandleCommand(ctx, msg("/redo")); err == nil {
		t.Fatalf("expected error")
	}
	state, _ := st.Get(7)
	last, _ := state.GetCurrentConversation().LastMessage()
	if last.Content != "original" || !last.From.IsAssistant() {
		t.Fatalf("popped reply was not restored: %+v", last)
	}
}

func TestHandleText_GroupMessagesArePrefixed(t *testing.T) {
	uc, st := newTestUC(&fakeModel{}, nil)
	in := IncomingMessage{ChatID: -100, Sender: "Bob", Text: "hey", IsGroup: true}
	if _, err := uc.HandleText(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	state, _ := st.Get(-100)
	first := state.GetCurrentConversation().Messages[0]
	if first.Content != "Bob: hey" || first.From != model.User("Bob") {
		t.Fatalf("unexpected stored message %+v", first)
	}
}

func TestHandleText_AfterNewStartsFreshConversation(t *testing.T) {
	ctx := context.Background()
	uc, st := newTestUC(&fakeModel{}, nil)
	if _, err := uc.HandleText(ctx, msg("one")); err != nil {
		t.Fatal(err)
	}
	if _, err := uc.HandleCommand(ctx, msg("/new")); err != nil {
		t.Fatal(err)
	}
	if _, err := uc.HandleText(ctx, msg("two")); err != nil {
		t.Fatal(err)
	}
	state, _ := st.Get(7)
	if len(state.Conversations) != 2 || *state.CurrentConversation != 1 {
		t.Fatalf("expected a second active conversation, got %+v", state)
	}
}

func TestDescribe_StoresDescription(t *testing.T) {
	ctx := context.Background()
	uc, st := newTestUC(&fakeModel{desc: "Planning a trip."}, nil)
	if _, err := uc.HandleText(ctx, msg("where should I go?")); err != nil {
		t.Fatal(err)
	}
	out, err := uc.HandleCommand(ctx, msg("/desc"))
	if err != nil {
		t.Fatal(err)
	}
	if out != "Description updated: Planning a trip." {
		t.Fatalf("out = %q", out)
	}
	state, _ := st.Get(7)
	d := state.GetCurrentConversation().Description
	if d == nil || *d != "Planning a trip." {
		t.Fatalf("description = %v", d)
	}
}

func TestReplyCommandIsCommitted(t *testing.T) {
	uc, st := newTestUC(&fakeModel{}, nil)
	if _, err := uc.HandleCommand(context.Background(), msg("/rename X")); err != nil {
		t.Fatal(err)
	}
	state, ok := st.Get(7)
	if !ok || state.Conversations[0].Name != "X" {
		t.Fatalf("rename not committed: %+v", state)
	}
}

func TestTypingIndicatorWhileWaiting(t *testing.T) {
	bot := &fakeBot{}
	uc, _ := newTestUC(&fakeModel{delay: 35 * time.Millisecond}, bot)
	if _, err := uc.HandleText(context.Background(), msg("slow")); err != nil {
		t.Fatal(err)
	}
	if n := bot.typing.Load(); n < 2 {
		t.Fatalf("expected repeated typing indicators, got %d", n)
	}
}

func TestDifferentChatsDoNotBlockEachOther(t *testing.T) {
	ai := &fakeModel{delay: 50 * time.Millisecond}
	uc, _ := newTestUC(ai, nil)

	start := time.Now()
	var wg sync.WaitGroup
	for i := int64(1); i <= 4; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _ = uc.HandleText(context.Background(), IncomingMessage{ChatID: id, Sender: "u", Text: "hi"})
		}(i)
	}
	wg.Wait()
	if took := time.Since(start); took > 150*time.Millisecond {
		t.Fatalf("chats were serialized: took %s", took)
	}
}
