package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"telegram-llm-relay/internal/domain"
	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/domain/ports/adapter"
)

var _ adapter.Model = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	client *genai.Client
	model  string
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
// baseURL may be empty to use the public endpoint.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, modelName string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if strings.TrimSpace(modelName) == "" {
		return nil, errors.New("gemini: empty model")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, model: modelName}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) Reply(ctx context.Context, conv *model.Conversation) (string, error) {
	return g.generate(ctx, replyTurns(conv))
}

func (g *GeminiAdapter) Description(ctx context.Context, conv *model.Conversation) (string, error) {
	return g.generate(ctx, descriptionTurns(conv))
}

func (g *GeminiAdapter) generate(ctx context.Context, turns []turn) (string, error) {
	contents, system := toGenAIContents(turns)
	if len(contents) == 0 {
		return "", errors.New("gemini: no messages")
	}
	var cfg *genai.GenerateContentConfig
	if system != nil {
		cfg = &genai.GenerateContentConfig{SystemInstruction: system}
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", domain.ErrEmptyResponse
	}
	return text, nil
}

// toGenAIContents maps assistant turns to the "model" role and lifts the
// system turn into a separate instruction. Gemini has no per-message sender
// name, so user turns are sent as plain text.
func toGenAIContents(turns []turn) ([]*genai.Content, *genai.Content) {
	var system *genai.Content
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		switch t.role {
		case turnSystem:
			system = genai.NewContentFromText(t.content, genai.RoleUser)
		case turnAssistant:
			out = append(out, genai.NewContentFromText(t.content, genai.RoleModel))
		default:
			out = append(out, genai.NewContentFromText(t.content, genai.RoleUser))
		}
	}
	return out, system
}
