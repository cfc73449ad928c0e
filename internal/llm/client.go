// Package llm implements the inference gateway against the local runtime.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fixed generation parameters. Deliberately not user-configurable.
const (
	temperature = 0.7
	topP        = 0.9
	maxTokens   = 2000
)

// Client is a stateless HTTP client for the runtime's generate endpoint.
type Client struct {
	host   string
	client *http.Client
}

// NewClient creates a client against the given runtime host. timeout bounds
// the whole completion call.
func NewClient(host string, timeout time.Duration) *Client {
	return &Client{
		host:   strings.TrimRight(host, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends one non-streaming completion request and returns the raw
// response text.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: temperature,
			TopP:        topP,
			MaxTokens:   maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call runtime: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("runtime returned status %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return decoded.Response, nil
}
