// Package llm provides the completion-client contract used by the
// interaction engine, plus an OpenAI-compatible HTTP implementation.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"weave/internal/config"
	weaveerrors "weave/internal/errors"
)

// Request describes a single completion call
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// Client is the opaque completion contract. Implementations return the raw
// text of the completion; parsing is the caller's concern.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// HTTPClient talks to an OpenAI-compatible chat completions endpoint
type HTTPClient struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a client from configuration. The API key is read
// from the environment variable named in the config, never from the file.
func NewHTTPClient(cfg config.LLMConfig) *HTTPClient {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		apiKey:  os.Getenv(cfg.APIKeyEnv),
		client:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one chat completion request and returns the response text
func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", weaveerrors.New(weaveerrors.LLMUnavailable, "completion request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", weaveerrors.New(weaveerrors.LLMUnavailable, "failed to read completion response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", weaveerrors.New(weaveerrors.LLMUnavailable,
			fmt.Sprintf("completion endpoint returned %d", resp.StatusCode), nil)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", weaveerrors.New(weaveerrors.LLMMalformedOutput, "failed to decode completion response", err)
	}
	if parsed.Error != nil {
		return "", weaveerrors.New(weaveerrors.LLMUnavailable, parsed.Error.Message, nil)
	}
	if len(parsed.Choices) == 0 {
		return "", weaveerrors.New(weaveerrors.LLMMalformedOutput, "completion response has no choices", nil)
	}

	return parsed.Choices[0].Message.Content, nil
}

// ScriptedClient replays canned responses in order. It backs tests and
// dry runs; once the script is exhausted every call returns an error.
type ScriptedClient struct {
	Responses []string
	Calls     []Request
	next      int
}

// Complete returns the next scripted response
func (c *ScriptedClient) Complete(_ context.Context, req Request) (string, error) {
	c.Calls = append(c.Calls, req)
	if c.next >= len(c.Responses) {
		return "", weaveerrors.New(weaveerrors.LLMUnavailable, "scripted client exhausted", nil)
	}
	resp := c.Responses[c.next]
	c.next++
	return resp, nil
}
