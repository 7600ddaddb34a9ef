package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"telegram-llm-relay/internal/infra/logging"
)

type countingFlusher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFlusher) Flush(ctx context.Context) error {
	f.calls.Add(1)
	return f.err
}

func TestAutosaveWorker_FlushesEveryTick(t *testing.T) {
	f := &countingFlusher{}
	w := NewAutosaveWorker(10*time.Millisecond, f, logging.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v", err)
	}
	if n := f.calls.Load(); n < 3 {
		t.Fatalf("expected several flushes, got %d", n)
	}
}

func TestAutosaveWorker_ErrorsAreNotFatal(t *testing.T) {
	f := &countingFlusher{err: errors.New("disk full")}
	w := NewAutosaveWorker(5*time.Millisecond, f, logging.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx)
	if n := f.calls.Load(); n < 2 {
		t.Fatalf("worker stopped after a failed save: %d calls", n)
	}
}

func TestNewAutosaveWorker_DefaultInterval(t *testing.T) {
	w := NewAutosaveWorker(0, &countingFlusher{}, logging.Nop())
	if w.interval != 5*time.Minute {
		t.Fatalf("interval = %s", w.interval)
	}
}
