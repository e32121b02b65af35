package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inboxinspire/internal/types"
)

// DefaultLLMModel is used when no model is configured.
const DefaultLLMModel = "openai/gpt-4o-mini"

// LLMClientConfig configures an OpenAI-compatible chat completions client.
type LLMClientConfig struct {
	APIKey  types.SecretString
	BaseURL string
	Model   string
}

// ChatClient implements LLMClient against any endpoint exposing
// POST {BaseURL}/chat/completions in the OpenAI wire format.
type ChatClient struct {
	base    *BaseClient
	apiKey  types.SecretString
	baseURL string
	model   string
}

// NewChatClient creates a ChatClient with its own circuit breaker.
func NewChatClient(httpClient *http.Client, cfg LLMClientConfig, opts ...BaseClientOption) *ChatClient {
	base := NewBaseClient(
		httpClient,
		"llm",
		RetryPolicy{
			MaxRetries: 1,
			MinWait:    time.Second,
			MaxWait:    4 * time.Second,
		},
		"InboxInspire/1.0",
		opts...,
	)
	model := cfg.Model
	if model == "" {
		model = DefaultLLMModel
	}
	return &ChatClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a system+user prompt pair and returns the first choice's
// trimmed text. An empty reply is an error.
func (c *ChatClient) Complete(ctx context.Context, in CompletionRequest) (string, error) {
	if !c.apiKey.IsSet() {
		return "", types.NewAppError(types.ErrCodeUpstreamLLM, "LLM API key not configured", nil)
	}

	messages := make([]chatMessage, 0, 2)
	if in.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: in.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: in.UserPrompt})

	body, err := json.Marshal(chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal completion request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return "", err
		}
		return "", types.NewAppError(types.ErrCodeUpstreamLLM, "completion request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamLLM, "failed to read completion response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", types.NewAppError(
			types.ErrCodeUpstreamLLM,
			fmt.Sprintf("completion endpoint returned %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
			nil,
		)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamLLM, "failed to decode completion response", err)
	}
	if parsed.Error != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamLLM, parsed.Error.Message, nil)
	}
	if len(parsed.Choices) == 0 {
		return "", types.NewAppError(types.ErrCodeUpstreamLLM, "no choices in completion response", nil)
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamLLM, "empty completion", nil)
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ LLMClient = (*ChatClient)(nil)
