// Package assistant talks to the black-box coach completion proxy and
// keeps the chat transcript.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProxyError is a non-2xx response from the completion proxy; the body is
// carried as error detail.
type ProxyError struct {
	Status int
	Body   string
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("proxy error %d: %s", e.Status, e.Body)
}

// Client posts prompts to the completion proxy. The proxy holds the
// upstream API key; the client only knows the agent id.
type Client struct {
	proxyURL   string
	agentID    string
	httpClient *http.Client
}

func NewClient(proxyURL, agentID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		proxyURL:   proxyURL,
		agentID:    agentID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type proxyRequest struct {
	AgentID string `json:"agentId"`
	Inputs  string `json:"inputs"`
}

// Complete sends the prompt and returns the extracted reply text. When no
// known shape matches, the stringified raw payload comes back verbatim.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(proxyRequest{AgentID: c.agentID, Inputs: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal proxy request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.proxyURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build proxy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("contact proxy: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read proxy response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ProxyError{Status: resp.StatusCode, Body: string(raw)}
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Plain-text responses are passed through as-is.
		return string(raw), nil
	}
	if text, ok := ExtractText(payload); ok {
		return text, nil
	}
	return string(raw), nil
}
