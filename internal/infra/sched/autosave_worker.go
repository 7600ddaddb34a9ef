package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Flusher persists the current chat states.
type Flusher interface {
	Flush(ctx context.Context) error
}

// AutosaveWorker periodically persists chat states. Failed saves are logged
// and retried on the next tick; they never stop the worker.
type AutosaveWorker struct {
	interval time.Duration
	store    Flusher
	log      *zerolog.Logger
}

func NewAutosaveWorker(interval time.Duration, store Flusher, logger *zerolog.Logger) *AutosaveWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	saveLog := logger.With().Str("component", "AutosaveWorker").Logger()
	return &AutosaveWorker{
		interval: interval,
		store:    store,
		log:      &saveLog,
	}
}

func (w *AutosaveWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting autosave worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping autosave worker")
			return ctx.Err()
		case <-ticker.C:
			if err := w.store.Flush(ctx); err != nil {
				w.log.Error().Err(err).Msg("autosave failed")
				continue
			}
			w.log.Debug().Msg("chat states saved")
		}
	}
}
