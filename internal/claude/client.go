// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package claude is a minimal client for the Claude Messages API, shared by
// the pipeline stages. Each stage supplies its own system prompt and parses
// the returned text into its stage-specific response type.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mesh-intelligence/feedback-engine/internal/httputil"
)

// DefaultBaseURL is the Claude Messages API endpoint.
const DefaultBaseURL = "https://api.anthropic.com/v1/messages"

const (
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

// Client calls the Claude Messages API. The zero HTTPClient and BaseURL
// fall back to http.DefaultClient and DefaultBaseURL; tests substitute both.
type Client struct {
	APIKey     string
	Model      string
	MaxTokens  int
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// request is the request body for the Messages API.
type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

// message is a single message in the conversation.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// response is the response body from the Messages API.
type response struct {
	Content []contentBlock `json:"content"`
}

// contentBlock is a content block in the API response.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends one user prompt under the given system prompt and returns
// the first text block of the response with Markdown code fences stripped.
// HTTP 429/529 responses are retried with backoff inside DoWithRetry; any
// other non-200 status is an error carrying the response body.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	reqBody := request{
		Model:     c.Model,
		MaxTokens: maxTokens,
		System:    system,
		Messages: []message{
			{Role: "user", Content: user},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp response
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	for _, block := range cResp.Content {
		if block.Type != "text" {
			continue
		}
		return StripFences(block.Text), nil
	}

	return "", fmt.Errorf("no text content in Claude API response")
}

// StripFences removes a surrounding Markdown code fence (``` or ```json)
// from a response, if present. Models occasionally wrap JSON output in one
// despite instructions not to.
func StripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		// Drop the language tag line (e.g. "json").
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
