package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/infra/logging"
)

// requestLogger writes one line per admin request. chi's request id becomes
// the trace id, and the chat id is added for per-chat routes.
func requestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				// Route params are filled in once the router has matched.
				if id, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64); err == nil {
					ctx = logging.WithChatID(ctx, id)
				}
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				l := logging.With(ctx, logger)
				l.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Dur("took", time.Since(start)).
					Msg("admin request")
			}()
			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}
