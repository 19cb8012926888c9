package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"echo-trivia/internal/generator"
	goopenai "github.com/sashabaranov/go-openai"
)

// Config selects the endpoint and model. BaseURL may point at any OpenAI-compatible server.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Completer implements generator.Completer with the chat completions API in JSON mode.
type Completer struct {
	client    *goopenai.Client
	model     string
	maxTokens int
}

func New(cfg Config) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = goopenai.GPT4oMini
	}
	return &Completer{
		client:    goopenai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (c *Completer) Complete(ctx context.Context, p generator.Prompt) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model:               c.model,
		Temperature:         p.Temperature,
		MaxCompletionTokens: c.maxTokens,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: p.System},
			{Role: goopenai.ChatMessageRoleUser, Content: p.User},
		},
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion: status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
