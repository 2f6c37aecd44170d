package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"paperforge/internal/config"
	"paperforge/internal/domain"
	"paperforge/internal/ports"
)

const backoffBase = 500 * time.Millisecond

// OpenAIGenerator implements ports.Generator backed by OpenAI-compatible APIs.
// Every call is stateless: the request carries its full context and no
// conversation history is retained between calls.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxRetries  int
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

var _ ports.Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator builds a generator from configuration.
func NewOpenAIGenerator(cfg config.GenerationConfig, logger *slog.Logger) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxRetries:  cfg.MaxRetries,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Generate performs one chat completion, retrying transport-level failures
// with capped exponential backoff before surfacing GenerationTransportError.
func (g *OpenAIGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("openai generator is not configured")
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	}
	if req.Temperature > 0 {
		chatReq.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	} else if g.maxTokens > 0 {
		chatReq.MaxTokens = g.maxTokens
	}
	if req.ForceJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	attempts := g.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := g.client.CreateChatCompletion(ctx, chatReq)
		if err == nil {
			if len(resp.Choices) == 0 {
				lastErr = fmt.Errorf("model returned no choices")
			} else {
				return resp.Choices[0].Message.Content, nil
			}
		} else {
			lastErr = err
		}

		if !retryable(lastErr) || attempt == attempts-1 {
			break
		}

		backoff := time.Duration(1<<attempt) * backoffBase
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}

		g.logger.Warn("generation call failed, retrying",
			"attempt", attempt+1, "max", attempts, "backoff", backoff, "error", lastErr)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", &domain.GenerationTransportError{Attempts: attempts, Err: lastErr}
}

// retryable reports whether the failure is transport-level: timeouts,
// rate limits, and server-side errors. Malformed requests are not retried.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return true
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}

	// Anything non-API (connection reset, deadline at the HTTP layer, or a
	// malformed choice-less response) is treated as transient.
	return true
}
