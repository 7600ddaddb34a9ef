package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/domain/ports/repository"
	"telegram-llm-relay/internal/infra/metrics"
)

var _ repository.ChatStateStore = (*ChatStore)(nil)

// ChatStore owns the in-memory chat states for the lifetime of the process.
//
// Work on one chat happens inside a Tx which holds that chat's lock and edits a
// private copy of its state; the copy replaces the stored state only on Commit.
// The map lock is held for map access only, so persisting a snapshot never
// waits for a model call in progress.
type ChatStore struct {
	repo repository.ChatStateRepository
	log  *zerolog.Logger

	mu     sync.RWMutex
	states model.ChatStates

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func NewChatStore(repo repository.ChatStateRepository, logger *zerolog.Logger) *ChatStore {
	storeLog := logger.With().Str("component", "ChatStore").Logger()
	return &ChatStore{
		repo:   repo,
		log:    &storeLog,
		states: model.ChatStates{},
		locks:  map[int64]*sync.Mutex{},
	}
}

// Load replaces the in-memory states with the repository contents.
func (s *ChatStore) Load(ctx context.Context) error {
	if s.repo == nil {
		return errors.New("chat store has no repository")
	}
	states, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if states == nil {
		states = model.ChatStates{}
	}
	for id, st := range states {
		if st == nil {
			delete(states, id)
		}
	}
	s.mu.Lock()
	s.states = states
	n := len(states)
	s.mu.Unlock()

	metrics.SetStoredChats(n)
	s.log.Info().Int("chats", n).Msg("chat states loaded")
	return nil
}

// Flush writes a snapshot of every committed state to the repository.
func (s *ChatStore) Flush(ctx context.Context) error {
	if s.repo == nil {
		return errors.New("chat store has no repository")
	}
	start := time.Now()
	snap := s.Snapshot()
	err := s.repo.Save(ctx, snap)
	metrics.ObservePersist(err == nil, time.Since(start))
	if err != nil {
		return err
	}
	s.log.Debug().Int("chats", len(snap)).Dur("took", time.Since(start)).Msg("chat states saved")
	return nil
}

// Snapshot returns a deep copy of all committed states.
func (s *ChatStore) Snapshot() model.ChatStates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states.Clone()
}

// Get returns a copy of one chat's committed state.
func (s *ChatStore) Get(chatID int64) (*model.UserState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[chatID]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// ChatIDs lists known chats in ascending order.
func (s *ChatStore) ChatIDs() []int64 {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *ChatStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

func (s *ChatStore) chatLock(chatID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[chatID] = l
	}
	return l
}

// Begin locks chatID and returns a transaction over a copy of its state.
// A chat seen for the first time starts with an empty state.
// Callers must call End, usually deferred.
func (s *ChatStore) Begin(chatID int64) repository.StateTx {
	return s.begin(chatID)
}

func (s *ChatStore) begin(chatID int64) *Tx {
	l := s.chatLock(chatID)
	l.Lock()

	s.mu.RLock()
	st := s.states[chatID].Clone()
	s.mu.RUnlock()
	if st == nil {
		st = model.NewUserState()
	}
	return &Tx{store: s, chatID: chatID, lock: l, state: st}
}

// Tx is exclusive access to one chat's state.
type Tx struct {
	store  *ChatStore
	chatID int64
	lock   *sync.Mutex
	state  *model.UserState
	ended  bool
}

// State is the working copy. Edits are discarded unless Commit is called.
func (t *Tx) State() *model.UserState { return t.state }

func (t *Tx) ChatID() int64 { return t.chatID }

// Commit publishes the working copy. It may be called more than once.
func (t *Tx) Commit() {
	if t.ended {
		return
	}
	committed := t.state.Clone()
	t.store.mu.Lock()
	t.store.states[t.chatID] = committed
	n := len(t.store.states)
	t.store.mu.Unlock()
	metrics.SetStoredChats(n)
}

// End releases the chat lock. Safe to call twice.
func (t *Tx) End() {
	if t.ended {
		return
	}
	t.ended = true
	t.lock.Unlock()
}
