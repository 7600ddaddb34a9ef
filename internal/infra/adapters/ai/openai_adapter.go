package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/domain"
	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.Model = (*OpenAIAdapter)(nil)

// OpenAIAdapter talks to any OpenAI-compatible Chat Completions endpoint
// (a local server, Groq, OpenAI itself).
type OpenAIAdapter struct {
	client openai.Client
	model  string
	base   string
	log    *zerolog.Logger
}

type OpenAIOptions struct {
	BaseURL    string
	Model      string
	APIToken   string // optional; sent as a bearer token
	Timeout    time.Duration
	MaxRetries int
}

func NewOpenAIAdapter(opts OpenAIOptions, logger *zerolog.Logger) (*OpenAIAdapter, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("openai: empty base url")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("openai: empty model")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	reqOpts := []option.RequestOption{
		option.WithBaseURL(opts.BaseURL),
		option.WithMaxRetries(opts.MaxRetries),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if opts.APIToken != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIToken))
	}
	aiLog := logger.With().Str("component", "OpenAIAdapter").Str("model", opts.Model).Logger()
	return &OpenAIAdapter{
		client: openai.NewClient(reqOpts...),
		model:  opts.Model,
		base:   opts.BaseURL,
		log:    &aiLog,
	}, nil
}

func (o *OpenAIAdapter) Name() string { return "openai" }

func (o *OpenAIAdapter) Reply(ctx context.Context, conv *model.Conversation) (string, error) {
	return o.complete(ctx, replyTurns(conv))
}

func (o *OpenAIAdapter) Description(ctx context.Context, conv *model.Conversation) (string, error) {
	return o.complete(ctx, descriptionTurns(conv))
}

func (o *OpenAIAdapter) complete(ctx context.Context, turns []turn) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: toOpenAIMessages(turns),
	})
	if err != nil {
		return "", err
	}
	o.log.Debug().
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Msg("chat completion")
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", domain.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(turns []turn) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.role {
		case turnSystem:
			out = append(out, openai.SystemMessage(t.content))
		case turnAssistant:
			out = append(out, openai.AssistantMessage(t.content))
		default:
			user := &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(t.content),
				},
			}
			if t.name != "" {
				user.Name = openai.String(t.name)
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfUser: user})
		}
	}
	return out
}
