package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kjstillabower/weather-map-service/internal/client"
	"github.com/kjstillabower/weather-map-service/internal/observability"
)

const (
	DefaultModel       = "gpt-4o"
	defaultTemperature = 0.7
	defaultMaxTokens   = 200
	provider           = "openai"
)

// OpenAINarrator completes prompts with the OpenAI chat completions API.
type OpenAINarrator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAINarrator returns a narrator for apiKey. An empty apiKey yields a
// narrator whose calls fail with ErrNotConfigured. baseURL overrides the API
// root (OpenAI-compatible gateways, tests) and model defaults to DefaultModel.
func NewOpenAINarrator(apiKey, baseURL, model string, timeout time.Duration) *OpenAINarrator {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	n := &OpenAINarrator{model: model, timeout: timeout}
	if apiKey == "" {
		return n
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	n.client = openai.NewClientWithConfig(cfg)
	return n
}

// Narrate sends the system message and prompt and returns the trimmed reply.
func (n *OpenAINarrator) Narrate(ctx context.Context, prompt string) (string, error) {
	if n.client == nil {
		return "", ErrNotConfigured
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       n.model,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	duration := time.Since(start).Seconds()
	if err != nil {
		status := "error"
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			status = client.StatusLabel(apiErr.HTTPStatusCode)
		}
		observability.UpstreamCallsTotal.WithLabelValues(provider, status).Inc()
		observability.UpstreamDuration.WithLabelValues(provider, status).Observe(duration)
		observability.UpstreamErrorsTotal.WithLabelValues(provider, string(categorize(err))).Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}
	observability.UpstreamCallsTotal.WithLabelValues(provider, "success").Inc()
	observability.UpstreamDuration.WithLabelValues(provider, "success").Observe(duration)

	var text string
	if len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if text == "" {
		observability.UpstreamErrorsTotal.WithLabelValues(provider, string(categorize(ErrEmptyCompletion))).Inc()
		return "", ErrEmptyCompletion
	}
	return text, nil
}
