package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// XAIConfig holds configuration for the xAI client.
type XAIConfig struct {
	APIKey  string
	Model   string        // default: grok-4-1-fast-non-reasoning
	BaseURL string        // default: https://api.x.ai
	Timeout time.Duration // default: 60s
	Breaker CircuitBreakerConfig
}

// XAIClient implements ChatCapability using xAI's OpenAI-compatible chat
// completions API.
type XAIClient struct {
	cfg            XAIConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewXAIClient creates a new xAI client with the given configuration.
func NewXAIClient(cfg XAIConfig) *XAIClient {
	if cfg.Model == "" {
		cfg.Model = "grok-4-1-fast-non-reasoning"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.x.ai"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &XAIClient{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: NewCircuitBreakerWithConfig(withBreakerDefaults(cfg.Breaker)),
	}
}

type xaiChatRequest struct {
	Model    string           `json:"model"`
	Messages []xaiChatMessage `json:"messages"`
}

type xaiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type xaiChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends a system/user prompt pair to xAI and returns the response text.
func (c *XAIClient) Chat(ctx context.Context, system, user string) (string, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.chat(ctx, system, user)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return "", fmt.Errorf("%w: xai circuit breaker open: %v", ErrUpstreamLLM, err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *XAIClient) chat(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := xaiChatRequest{
		Model: c.cfg.Model,
		Messages: []xaiChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("xai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("xai: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamLLM, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: xai returned status %d: %s", ErrUpstreamLLM, resp.StatusCode, string(body))
	}

	var respData xaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstreamLLM, err)
	}

	if len(respData.Choices) == 0 {
		return "", fmt.Errorf("%w: xai returned no choices", ErrUpstreamLLM)
	}

	return respData.Choices[0].Message.Content, nil
}

// GetModel returns the configured model name.
func (c *XAIClient) GetModel() string {
	return c.cfg.Model
}

var _ ChatCapability = (*XAIClient)(nil)
