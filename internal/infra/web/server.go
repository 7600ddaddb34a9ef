package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/domain/model"
)

// ChatStates is the read and flush surface of the chat store.
type ChatStates interface {
	ChatIDs() []int64
	Get(chatID int64) (*model.UserState, bool)
	Flush(ctx context.Context) error
}

// Server is the admin HTTP endpoint: health, metrics and chat inspection.
type Server struct {
	states ChatStates
	auth   *AuthManager
	log    *zerolog.Logger
	srv    *http.Server
}

func NewServer(port int, states ChatStates, auth *AuthManager, logger *zerolog.Logger) *Server {
	webLog := logger.With().Str("component", "AdminServer").Logger()
	s := &Server{states: states, auth: auth, log: &webLog}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, requestLogger(s.log), middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Require, middleware.Timeout(30*time.Second))
		r.Get("/chats", s.listChats)
		r.Get("/chats/{chatID}", s.getChat)
		r.Post("/flush", s.flush)
	})
	return r
}

// Start blocks until the server is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("admin server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type chatSummary struct {
	ChatID              int64 `json:"chat_id"`
	Conversations       int   `json:"conversations"`
	CurrentConversation *int  `json:"current_conversation"`
}

func (s *Server) listChats(w http.ResponseWriter, _ *http.Request) {
	ids := s.states.ChatIDs()
	out := make([]chatSummary, 0, len(ids))
	for _, id := range ids {
		st, ok := s.states.Get(id)
		if !ok {
			continue
		}
		out = append(out, chatSummary{ChatID: id, Conversations: len(st.Conversations), CurrentConversation: st.CurrentConversation})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return
	}
	st, ok := s.states.Get(id)
	if !ok {
		http.Error(w, "chat not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) flush(w http.ResponseWriter, r *http.Request) {
	if err := s.states.Flush(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("flush via admin api failed")
		http.Error(w, "flush failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
