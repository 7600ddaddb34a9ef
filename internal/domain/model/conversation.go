package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type RoleKind int

const (
	RoleAssistant RoleKind = iota
	RoleUser
)

// Role identifies who authored a message. User roles carry the sender's display name.
type Role struct {
	Kind RoleKind
	Name string
}

func Assistant() Role { return Role{Kind: RoleAssistant} }

func User(name string) Role { return Role{Kind: RoleUser, Name: name} }

func (r Role) IsAssistant() bool { return r.Kind == RoleAssistant }

// MarshalJSON keeps the on-disk format of older chats.json files:
// "Assistant" or {"User":"name"}.
func (r Role) MarshalJSON() ([]byte, error) {
	if r.IsAssistant() {
		return json.Marshal("Assistant")
	}
	return json.Marshal(map[string]string{"User": r.Name})
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var tag string
	if err := json.Unmarshal(b, &tag); err == nil {
		if tag != "Assistant" {
			return fmt.Errorf("unknown role %q", tag)
		}
		*r = Assistant()
		return nil
	}
	var user struct {
		User *string `json:"User"`
	}
	if err := json.Unmarshal(b, &user); err != nil {
		return fmt.Errorf("decode role: %w", err)
	}
	if user.User == nil {
		return fmt.Errorf("unknown role %s", string(b))
	}
	*r = User(*user.User)
	return nil
}

// ChatMessage represents one message within a conversation.
type ChatMessage struct {
	Content string `json:"content"`
	From    Role   `json:"from"`
}

func NewUserMessage(name, content string) ChatMessage {
	return ChatMessage{Content: content, From: User(name)}
}

func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Content: content, From: Assistant()}
}

// Conversation is one chat thread. Messages is the exact transcript sent to the model;
// System, when set, is sent ahead of it but never stored in Messages.
type Conversation struct {
	Name        string        `json:"name"`
	Messages    []ChatMessage `json:"messages"`
	System      *string       `json:"system"`
	Description *string       `json:"description"`
}

const conversationNameLayout = "02/01/2006 15:04"

func NewConversation(now time.Time) Conversation {
	return Conversation{
		Name:     "Conversation from " + now.UTC().Format(conversationNameLayout),
		Messages: []ChatMessage{},
	}
}

// String is the display form used by /list.
func (c *Conversation) String() string {
	if c.Description != nil {
		return c.Name + ": " + *c.Description
	}
	return c.Name
}

func (c *Conversation) LastMessage() (ChatMessage, bool) {
	if len(c.Messages) == 0 {
		return ChatMessage{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

func (c *Conversation) Append(m ChatMessage) {
	c.Messages = append(c.Messages, m)
}

func (c *Conversation) PopLast() {
	if len(c.Messages) > 0 {
		c.Messages = c.Messages[:len(c.Messages)-1]
	}
}

func (c *Conversation) Reset() {
	c.Messages = c.Messages[:0]
	c.System = nil
}

func (c Conversation) clone() Conversation {
	out := c
	if c.Messages != nil {
		out.Messages = make([]ChatMessage, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	out.System = cloneString(c.System)
	out.Description = cloneString(c.Description)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// UserState holds every conversation of one chat and the index of the active one.
type UserState struct {
	Conversations       []Conversation `json:"conversations"`
	CurrentConversation *int           `json:"current_conversation"`
}

func NewUserState() *UserState {
	return &UserState{Conversations: []Conversation{}}
}

// GetCurrentConversation returns the active conversation, or nil when none is
// selected or the index is stale.
func (s *UserState) GetCurrentConversation() *Conversation {
	if s.CurrentConversation == nil {
		return nil
	}
	idx := *s.CurrentConversation
	if idx < 0 || idx >= len(s.Conversations) {
		return nil
	}
	return &s.Conversations[idx]
}

// GetOrCreateConversation returns the active conversation, starting a new one
// when none is selected. Afterwards CurrentConversation is always valid.
func (s *UserState) GetOrCreateConversation() *Conversation {
	if c := s.GetCurrentConversation(); c != nil {
		return c
	}
	s.Conversations = append(s.Conversations, NewConversation(time.Now()))
	idx := len(s.Conversations) - 1
	s.CurrentConversation = &idx
	return &s.Conversations[idx]
}

func (s *UserState) ClearCurrentConversation() {
	s.CurrentConversation = nil
}

// Clone returns a deep copy; mutations of the copy never reach s.
func (s *UserState) Clone() *UserState {
	if s == nil {
		return nil
	}
	out := &UserState{}
	if s.Conversations != nil {
		out.Conversations = make([]Conversation, len(s.Conversations))
		for i, c := range s.Conversations {
			out.Conversations[i] = c.clone()
		}
	}
	if s.CurrentConversation != nil {
		idx := *s.CurrentConversation
		out.CurrentConversation = &idx
	}
	return out
}

// ChatStates maps a Telegram chat id to its state.
type ChatStates map[int64]*UserState

func (cs ChatStates) Clone() ChatStates {
	out := make(ChatStates, len(cs))
	for id, st := range cs {
		out[id] = st.Clone()
	}
	return out
}
