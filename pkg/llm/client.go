// Package llm provides a client for OpenAI-compatible chat-completion APIs.
package llm

import (
	"ai-grader/internal/config"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrNoContent is returned when a successful response carries no text in
	// its first choice.
	ErrNoContent = errors.New("chat api returned no content")
	// ErrMissingAPIKey is returned before any network call when no credential
	// is configured.
	ErrMissingAPIKey = errors.New("chat api key is not configured")
)

// APIError is returned when the provider answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api returned non-2xx status: %s, body: %s", e.Status, e.Body)
}

// Client defines the interface for an LLM client.
type Client interface {
	// ChatMessages sends the role-based messages and returns the text of the
	// first choice. gen overrides the configured sampling parameters.
	ChatMessages(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
	// Chat wraps prompt into a single user message.
	Chat(ctx context.Context, prompt string) (string, error)
}

type openRouterClient struct {
	cfg    config.LLMConfig
	apiKey func() string
	client *http.Client
}

// NewClient creates a client for the provider described by cfg. apiKey is
// called on every request; its value is only ever placed in the
// Authorization header.
func NewClient(cfg config.LLMConfig, apiKey func() string) Client {
	return &openRouterClient{
		cfg:    cfg,
		apiKey: apiKey,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Message is a single role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams controls sampling. Nil fields are omitted from the request.
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *openRouterClient) Chat(ctx context.Context, prompt string) (string, error) {
	return c.ChatMessages(ctx, []Message{{Role: "user", Content: prompt}}, nil)
}

func (c *openRouterClient) ChatMessages(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	key := c.apiKey()
	if key == "" {
		return "", ErrMissingAPIKey
	}

	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
	}
	if gen == nil {
		gen = c.configuredParams()
	}
	reqBody.Temperature = gen.Temperature
	reqBody.TopP = gen.TopP
	reqBody.MaxTokens = gen.MaxTokens

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("failed to read chat api error body: %w", readErr)
		}
		return "", &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(bodyBytes)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil || *parsed.Choices[0].Message.Content == "" {
		return "", ErrNoContent
	}
	return *parsed.Choices[0].Message.Content, nil
}

// configuredParams turns the non-zero generation settings into request params.
func (c *openRouterClient) configuredParams() *GenerationParams {
	var gp GenerationParams
	if c.cfg.Generation.Temperature != 0 {
		t := c.cfg.Generation.Temperature
		gp.Temperature = &t
	}
	if c.cfg.Generation.TopP != 0 {
		p := c.cfg.Generation.TopP
		gp.TopP = &p
	}
	if c.cfg.Generation.MaxTokens != 0 {
		m := c.cfg.Generation.MaxTokens
		gp.MaxTokens = &m
	}
	return &gp
}
