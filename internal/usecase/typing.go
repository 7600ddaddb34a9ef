package usecase

import (
	"context"
	"sync"
	"time"
)

// withTyping runs fn while re-sending the typing indicator to chatID every
// c.typing. Telegram clears the indicator after about five seconds.
func (c *chatUC) withTyping(ctx context.Context, chatID int64, fn func(context.Context) (string, error)) (string, error) {
	if c.bot == nil {
		return fn(ctx)
	}
	typingCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.typing)
		defer ticker.Stop()
		for {
			if err := c.bot.SendTyping(typingCtx, chatID); err != nil && typingCtx.Err() == nil {
				c.log.Debug().Err(err).Int64("chat_id", chatID).Msg("typing indicator failed")
			}
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	out, err := fn(ctx)
	cancel()
	wg.Wait()
	return out, err
}
