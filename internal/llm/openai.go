// Package llm adapts OpenAI-compatible chat completion endpoints to the
// single-shot completion the suggestion pipeline needs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

var ErrMissingAPIKey = errors.New("OPENAI_API_KEY not configured")

const (
	DefaultModel       = openai.GPT4oMini
	DefaultMaxTokens   = 400
	DefaultTemperature = 0.6
)

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	// Temperature is DefaultTemperature when nil. Zero is a valid setting.
	Temperature *float32
	// HTTPTimeout bounds the underlying HTTP client; callers normally also
	// pass a context deadline.
	HTTPTimeout time.Duration
}

type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	logger      zerolog.Logger
}

func NewClient(opts Options, logger zerolog.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	if opts.HTTPTimeout > 0 {
		config.HTTPClient = &http.Client{Timeout: opts.HTTPTimeout}
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := float32(DefaultTemperature)
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	return &Client{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger.With().Str("component", "llm").Str("model", model).Logger(),
	}, nil
}

// Complete sends one system/user exchange and returns the first choice's
// content. It does not retry.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if req.Temperature == 0 {
		// The request field is omitempty; an explicit zero would be dropped
		// and the server default used instead.
		req.Temperature = math.SmallestNonzeroFloat32
	}

	c.logger.Debug().Int("system_length", len(system)).Int("user_length", len(user)).Msg("Calling chat completion")

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}

	c.logger.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("Chat completion finished")

	return resp.Choices[0].Message.Content, nil
}
