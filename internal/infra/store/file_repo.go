package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/domain/ports/repository"
)

var _ repository.ChatStateRepository = (*FileRepo)(nil)

// FileRepo keeps all chat states in a single JSON document on disk.
type FileRepo struct {
	path  string
	codec Codec
	log   *zerolog.Logger
}

func NewFileRepo(path string, codec Codec, logger *zerolog.Logger) (*FileRepo, error) {
	if path == "" {
		return nil, errors.New("file repo: empty path")
	}
	repoLog := logger.With().Str("component", "FileRepo").Str("path", path).Logger()
	return &FileRepo{path: path, codec: codec, log: &repoLog}, nil
}

// Load reads the document. A missing or unreadable document yields an empty
// mapping so the bot can always start.
func (r *FileRepo) Load(ctx context.Context) (model.ChatStates, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.log.Info().Msg("no saved chats; starting empty")
			return model.ChatStates{}, nil
		}
		r.log.Warn().Err(err).Msg("cannot read saved chats; starting empty")
		return model.ChatStates{}, nil
	}
	states, dropped, err := r.codec.UnmarshalStates(data)
	if err != nil {
		r.log.Warn().Err(err).Msg("saved chats are corrupt; starting empty")
		return model.ChatStates{}, nil
	}
	if len(dropped) > 0 {
		r.log.Warn().Ints64("chat_ids", dropped).Msg("skipping corrupt chat states")
	}
	return states, nil
}

// Save writes to a temp file next to the target and renames it into place.
func (r *FileRepo) Save(ctx context.Context, states model.ChatStates) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := r.codec.MarshalIndent(states)
	if err != nil {
		return err
	}
	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("rename %s: %w", r.path, err)
	}
	return nil
}
