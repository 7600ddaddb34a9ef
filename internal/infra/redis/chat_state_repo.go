package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/domain"
	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/domain/ports/repository"
	"telegram-llm-relay/internal/infra/store"
)

var _ repository.ChatStateRepository = (*ChatStateRepo)(nil)

const saveLockTTL = 30 * time.Second

// ChatStateRepo stores every chat state as one document under a single key.
// Saves from several bot processes are serialized with a lock key.
type ChatStateRepo struct {
	cli    RedisClient
	locker Locker
	key    string
	codec  store.Codec
	log    *zerolog.Logger
}

func NewChatStateRepo(cli RedisClient, key string, codec store.Codec, logger *zerolog.Logger) *ChatStateRepo {
	if key == "" {
		key = "chat_states"
	}
	repoLog := logger.With().Str("component", "RedisChatStateRepo").Str("key", key).Logger()
	return &ChatStateRepo{cli: cli, locker: NewLocker(cli), key: key, codec: codec, log: &repoLog}
}

func (r *ChatStateRepo) Load(ctx context.Context) (model.ChatStates, error) {
	raw, err := r.cli.Get(ctx, r.key)
	if errors.Is(err, domain.ErrNotFound) {
		r.log.Info().Msg("no saved chats; starting empty")
		return model.ChatStates{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	states, dropped, err := r.codec.UnmarshalStates([]byte(raw))
	if err != nil {
		r.log.Warn().Err(err).Msg("saved chats are corrupt; starting empty")
		return model.ChatStates{}, nil
	}
	if len(dropped) > 0 {
		r.log.Warn().Ints64("chat_ids", dropped).Msg("skipping corrupt chat states")
	}
	return states, nil
}

func (r *ChatStateRepo) Save(ctx context.Context, states model.ChatStates) error {
	data, err := r.codec.Marshal(states)
	if err != nil {
		return err
	}
	lockKey := r.key + ":lock"
	token, err := r.locker.TryLock(ctx, lockKey, saveLockTTL)
	if err != nil {
		return fmt.Errorf("lock %s: %w", lockKey, err)
	}
	defer func() {
		if err := r.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			r.log.Warn().Err(err).Msg("unlock failed")
		}
	}()
	if err := r.cli.Set(ctx, r.key, data, 0); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}
