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

// GoogleConfig holds configuration for the Google (Gemini) client.
type GoogleConfig struct {
	APIKey  string
	Model   string        // default: gemini-2.0-flash
	BaseURL string        // default: https://generativelanguage.googleapis.com
	Timeout time.Duration // default: 60s
	Breaker CircuitBreakerConfig
}

// GoogleClient implements ChatCapability using the Gemini generateContent API.
type GoogleClient struct {
	cfg            GoogleConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewGoogleClient creates a new Google client with the given configuration.
func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &GoogleClient{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: NewCircuitBreakerWithConfig(withBreakerDefaults(cfg.Breaker)),
	}
}

type googleGenerateRequest struct {
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
	Contents          []googleContent `json:"contents"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleGenerateResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

// Chat sends a system/user prompt pair to Gemini and returns the response text.
func (c *GoogleClient) Chat(ctx context.Context, system, user string) (string, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.chat(ctx, system, user)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return "", fmt.Errorf("%w: google circuit breaker open: %v", ErrUpstreamLLM, err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *GoogleClient) chat(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := googleGenerateRequest{
		SystemInstruction: &googleContent{Parts: []googlePart{{Text: system}}},
		Contents: []googleContent{
			{Role: "user", Parts: []googlePart{{Text: user}}},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("google: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("google: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamLLM, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: google returned status %d: %s", ErrUpstreamLLM, resp.StatusCode, string(body))
	}

	var respData googleGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstreamLLM, err)
	}

	if len(respData.Candidates) == 0 || len(respData.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: google returned no candidates", ErrUpstreamLLM)
	}

	return respData.Candidates[0].Content.Parts[0].Text, nil
}

// GetModel returns the configured model name.
func (c *GoogleClient) GetModel() string {
	return c.cfg.Model
}

var _ ChatCapability = (*GoogleClient)(nil)
