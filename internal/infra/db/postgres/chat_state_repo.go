package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/domain/ports/repository"
	"telegram-llm-relay/internal/infra/store"
)

var _ repository.ChatStateRepository = (*ChatStateRepo)(nil)

// ChatStateRepo keeps one row per chat; the state column holds the encoded UserState.
type ChatStateRepo struct {
	pool  *pgxpool.Pool
	tx    *TxManager
	codec store.Codec
	log   *zerolog.Logger
}

func NewChatStateRepo(pool *pgxpool.Pool, codec store.Codec, logger *zerolog.Logger) *ChatStateRepo {
	repoLog := logger.With().Str("component", "PostgresChatStateRepo").Logger()
	return &ChatStateRepo{pool: pool, tx: NewTxManager(pool), codec: codec, log: &repoLog}
}

func (r *ChatStateRepo) Load(ctx context.Context) (model.ChatStates, error) {
	const q = `SELECT chat_id, state FROM chat_states;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		if isUndefinedTable(err) {
			r.log.Info().Msg("chat_states table missing; starting empty")
			return model.ChatStates{}, nil
		}
		return nil, fmt.Errorf("query chat states: %w", err)
	}
	defer rows.Close()

	states := model.ChatStates{}
	for rows.Next() {
		var (
			chatID int64
			raw    string
		)
		if err := rows.Scan(&chatID, &raw); err != nil {
			return nil, fmt.Errorf("scan chat state: %w", err)
		}
		var st model.UserState
		if err := r.codec.Unmarshal([]byte(raw), &st); err != nil {
			r.log.Warn().Err(err).Int64("chat_id", chatID).Msg("skipping corrupt chat state")
			continue
		}
		states[chatID] = &st
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return model.ChatStates{}, nil
		}
		return nil, fmt.Errorf("iterate chat states: %w", err)
	}
	return states, nil
}

// Save upserts every chat in a single transaction.
func (r *ChatStateRepo) Save(ctx context.Context, states model.ChatStates) error {
	const q = `
INSERT INTO chat_states (chat_id, state, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (chat_id) DO UPDATE SET
  state = EXCLUDED.state,
  updated_at = EXCLUDED.updated_at;`

	batch := &pgx.Batch{}
	for chatID, st := range states {
		data, err := r.codec.Marshal(st)
		if err != nil {
			return fmt.Errorf("encode chat %d: %w", chatID, err)
		}
		batch.Queue(q, chatID, string(data))
	}
	if batch.Len() == 0 {
		return nil
	}

	return r.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("upsert chat state: %w", err)
			}
		}
		return br.Close()
	})
}

// isUndefinedTable reports SQLSTATE 42P01.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
