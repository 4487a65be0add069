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

// VoyageConfig holds configuration for the Voyage embedding client.
type VoyageConfig struct {
	APIKey  string
	Model   string        // default: voyage-code-3
	BaseURL string        // default: https://api.voyageai.com
	Timeout time.Duration // default: 60s
	Breaker CircuitBreakerConfig
}

// VoyageClient implements EmbedCapability using the Voyage AI embeddings API.
type VoyageClient struct {
	cfg            VoyageConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewVoyageClient creates a new Voyage client with the given configuration.
func NewVoyageClient(cfg VoyageConfig) *VoyageClient {
	if cfg.Model == "" {
		cfg.Model = "voyage-code-3"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.voyageai.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &VoyageClient{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: NewCircuitBreakerWithConfig(withBreakerDefaults(cfg.Breaker)),
	}
}

type voyageEmbedRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type voyageEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns a unit-norm embedding for text. role is "document" for
// stored facts or "query" for search queries; Voyage maps this to its
// input_type field so query and document vectors are embedded asymmetrically.
func (c *VoyageClient) Embed(ctx context.Context, text string, role string) ([]float32, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.embed(ctx, text, role)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: voyage circuit breaker open: %v", ErrUpstreamEmbed, err)
		}
		return nil, err
	}
	return result.([]float32), nil
}

func (c *VoyageClient) embed(ctx context.Context, text string, role string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	inputType := "document"
	if role == "query" {
		inputType = "query"
	}

	reqBody := voyageEmbedRequest{
		Input:     []string{text},
		Model:     c.cfg.Model,
		InputType: inputType,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("voyage: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("voyage: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamEmbed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: voyage returned status %d: %s", ErrUpstreamEmbed, resp.StatusCode, string(body))
	}

	var respData voyageEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstreamEmbed, err)
	}

	if len(respData.Data) == 0 {
		return nil, fmt.Errorf("%w: voyage returned no embeddings", ErrUpstreamEmbed)
	}

	return respData.Data[0].Embedding, nil
}

// GetModel returns the configured model name.
func (c *VoyageClient) GetModel() string {
	return c.cfg.Model
}

var _ EmbedCapability = (*VoyageClient)(nil)
