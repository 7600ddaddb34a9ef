package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"telegram-llm-relay/internal/domain/model"
)

type stubModel struct {
	name     string
	delay    time.Duration
	err      error
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *stubModel) Name() string { return s.name }

func (s *stubModel) Reply(ctx context.Context, conv *model.Conversation) (string, error) {
	return s.call(ctx)
}

func (s *stubModel) Description(ctx context.Context, conv *model.Conversation) (string, error) {
	return s.call(ctx)
}

func (s *stubModel) call(ctx context.Context) (string, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return "ok", nil
}

func TestLimitedAI_CapsConcurrency(t *testing.T) {
	inner := &stubModel{name: "stub", delay: 20 * time.Millisecond}
	m := NewLimitedAI(inner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Reply(context.Background(), &model.Conversation{})
		}()
	}
	wg.Wait()
	if p := inner.peak.Load(); p > 2 {
		t.Fatalf("peak concurrency %d exceeds limit", p)
	}
	if inner.calls.Load() != 6 {
		t.Fatalf("calls = %d", inner.calls.Load())
	}
}

func TestLimitedAI_WaitRespectsContext(t *testing.T) {
	inner := &stubModel{name: "stub", delay: 200 * time.Millisecond}
	m := NewLimitedAI(inner, 1)

	go func() { _, _ = m.Reply(context.Background(), &model.Conversation{}) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Description(ctx, &model.Conversation{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLimitedAI_ZeroLimitIsPassthrough(t *testing.T) {
	inner := &stubModel{name: "stub"}
	if NewLimitedAI(inner, 0) != inner {
		t.Fatalf("limit 0 should return the inner model")
	}
}
