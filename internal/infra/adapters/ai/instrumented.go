package ai

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/domain/ports/adapter"
	"telegram-llm-relay/internal/infra/metrics"
)

var _ adapter.Model = (*instrumentedAI)(nil)

type instrumentedAI struct {
	inner adapter.Model
	log   *zerolog.Logger
}

// NewInstrumentedAI records latency and estimated token counts of every call.
func NewInstrumentedAI(inner adapter.Model, logger *zerolog.Logger) adapter.Model {
	l := logger.With().Str("component", "ModelCalls").Str("provider", inner.Name()).Logger()
	loadTokenizer(&l)
	return &instrumentedAI{inner: inner, log: &l}
}

func (i *instrumentedAI) Name() string { return i.inner.Name() }

func (i *instrumentedAI) Reply(ctx context.Context, conv *model.Conversation) (string, error) {
	return i.observe("reply", replyTurns(conv), func() (string, error) {
		return i.inner.Reply(ctx, conv)
	})
}

func (i *instrumentedAI) Description(ctx context.Context, conv *model.Conversation) (string, error) {
	return i.observe("describe", descriptionTurns(conv), func() (string, error) {
		return i.inner.Description(ctx, conv)
	})
}

func (i *instrumentedAI) observe(op string, turns []turn, fn func() (string, error)) (string, error) {
	start := time.Now()
	out, err := fn()
	took := time.Since(start)

	in := estimateTokens(turnsText(turns)...)
	var outTokens int
	if err == nil {
		outTokens = estimateTokens(out)
	}
	metrics.ObserveModelCall(i.inner.Name(), op, in, outTokens, took, err == nil)

	ev := i.log.Debug()
	if err != nil {
		ev = i.log.Warn().Err(err)
	}
	ev.Str("op", op).Int("tokens_in", in).Int("tokens_out", outTokens).Dur("took", took).Msg("model call")
	return out, err
}

var (
	tokenizerOnce sync.Once
	tokenizer     atomic.Pointer[tiktoken.Tiktoken]
)

// loadTokenizer fetches the cl100k_base encoding in the background. The
// default loader downloads it, so the model path never waits on it.
func loadTokenizer(log *zerolog.Logger) {
	tokenizerOnce.Do(func() {
		go func() {
			e, err := tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				log.Debug().Err(err).Msg("tokenizer unavailable; estimating token counts")
				return
			}
			tokenizer.Store(e)
		}()
	})
}

func estimateTokens(texts ...string) int {
	return countTokens(tokenizer.Load(), texts...)
}

// countTokens uses enc when set, otherwise about four bytes per token.
func countTokens(enc *tiktoken.Tiktoken, texts ...string) int {
	n := 0
	for _, t := range texts {
		if t == "" {
			continue
		}
		if enc != nil {
			n += len(enc.Encode(t, nil, nil))
			continue
		}
		n += (len(t) + 3) / 4
	}
	return n
}
