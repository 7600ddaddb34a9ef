package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"telegram-llm-relay/internal/domain"
	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/infra/logging"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
		Name    string `json:"name"`
	} `json:"messages"`
}

func completionServer(t *testing.T, content string, status int) (*httptest.Server, *capturedRequest, *http.Header) {
	t.Helper()
	var (
		mu  sync.Mutex
		got capturedRequest
		hdr http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(body, &got)
		hdr = r.Header.Clone()
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   got.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &got, &hdr
}

func newTestOpenAI(t *testing.T, baseURL, token string) *OpenAIAdapter {
	t.Helper()
	a, err := NewOpenAIAdapter(OpenAIOptions{BaseURL: baseURL + "/v1", Model: "test-model", APIToken: token}, logging.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestOpenAIAdapter_Reply(t *testing.T) {
	srv, got, hdr := completionServer(t, "Try Lisbon.", http.StatusOK)
	a := newTestOpenAI(t, srv.URL, "secret")

	sys := "You are a travel agent."
	conv := &model.Conversation{
		System: &sys,
		Messages: []model.ChatMessage{
			model.NewUserMessage("Alice", "where should I go?"),
			model.NewAssistantMessage("Somewhere warm?"),
			model.NewUserMessage("Alice", "yes"),
		},
	}
	out, err := a.Reply(context.Background(), conv)
	if err != nil {
		t.Fatal(err)
	}
	if out != "Try Lisbon." {
		t.Fatalf("reply = %q", out)
	}
	if got.Model != "test-model" || len(got.Messages) != 4 {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != sys {
		t.Fatalf("system turn = %+v", got.Messages[0])
	}
	if got.Messages[1].Role != "user" || got.Messages[1].Name != "Alice" {
		t.Fatalf("user turn = %+v", got.Messages[1])
	}
	if got.Messages[2].Role != "assistant" || got.Messages[2].Name != "" {
		t.Fatalf("assistant turn = %+v", got.Messages[2])
	}
	if auth := hdr.Get("Authorization"); auth != "Bearer secret" {
		t.Fatalf("authorization = %q", auth)
	}
}

func TestOpenAIAdapter_Description(t *testing.T) {
	srv, got, _ := completionServer(t, "Trip planning.", http.StatusOK)
	a := newTestOpenAI(t, srv.URL, "")

	sys := "ignored"
	conv := &model.Conversation{System: &sys, Messages: []model.ChatMessage{model.NewUserMessage("Bob", "hi")}}
	out, err := a.Description(context.Background(), conv)
	if err != nil || out != "Trip planning." {
		t.Fatalf("description = %q, %v", out, err)
	}
	if got.Messages[0].Content != DescriptionInstruction {
		t.Fatalf("system turn = %+v", got.Messages[0])
	}
}

func TestOpenAIAdapter_EmptyContent(t *testing.T) {
	srv, _, _ := completionServer(t, "", http.StatusOK)
	a := newTestOpenAI(t, srv.URL, "")
	_, err := a.Reply(context.Background(), &model.Conversation{Messages: []model.ChatMessage{model.NewUserMessage("a", "b")}})
	if !errors.Is(err, domain.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestOpenAIAdapter_HTTPError(t *testing.T) {
	srv, _, _ := completionServer(t, "", http.StatusBadRequest)
	a := newTestOpenAI(t, srv.URL, "")
	if _, err := a.Reply(context.Background(), &model.Conversation{}); err == nil {
		t.Fatalf("expected error for HTTP 400")
	}
}

func TestNewOpenAIAdapter_Validation(t *testing.T) {
	if _, err := NewOpenAIAdapter(OpenAIOptions{Model: "m"}, logging.Nop()); err == nil {
		t.Fatalf("expected error for empty base url")
	}
	if _, err := NewOpenAIAdapter(OpenAIOptions{BaseURL: "http://x"}, logging.Nop()); err == nil {
		t.Fatalf("expected error for empty model")
	}
}
