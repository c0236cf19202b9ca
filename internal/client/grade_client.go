// Package client calls the grading proxy over HTTP on behalf of a
// conversation controller.
package client

import (
	"ai-grader/internal/config"
	"ai-grader/internal/model"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ReplyError is a failed grading turn. Message is what the user sees.
type ReplyError struct {
	Message string
	Err     error
}

func (e *ReplyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ReplyError) Unwrap() error { return e.Err }

// UserMessage returns the text to show in the assessment panel.
func (e *ReplyError) UserMessage() string { return e.Message }

// GradeClient posts conversations to /api/grade.
type GradeClient struct {
	endpoint string
	texts    config.GradingConfig
	client   *http.Client
}

// NewGradeClient creates a client for the proxy at baseURL.
func NewGradeClient(baseURL string, timeout time.Duration, texts config.GradingConfig) *GradeClient {
	return &GradeClient{
		endpoint: baseURL + "/api/grade",
		texts:    texts,
		client:   &http.Client{Timeout: timeout},
	}
}

type gradeRequest struct {
	Messages []model.ChatMessage `json:"messages"`
}

// Send posts the whole conversation and returns the assistant's reply.
// Any failure is returned as a *ReplyError.
func (c *GradeClient) Send(ctx context.Context, messages []model.ChatMessage) (string, error) {
	payload, err := json.Marshal(gradeRequest{Messages: messages})
	if err != nil {
		return "", &ReplyError{Message: c.texts.ClientFailureText, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &ReplyError{Message: c.texts.UnreachableText, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &ReplyError{Message: c.texts.UnreachableText, Err: err}
	}
	defer resp.Body.Close()

	var body model.GradeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &ReplyError{Message: c.texts.UnreachableText, Err: fmt.Errorf("decode proxy response (status %d): %w", resp.StatusCode, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := body.Result
		if msg == "" {
			msg = c.texts.ClientFailureText
		}
		return "", &ReplyError{Message: msg, Err: fmt.Errorf("proxy returned status %d", resp.StatusCode)}
	}
	if body.Error != "" {
		return "", &ReplyError{Message: body.Result, Err: fmt.Errorf("proxy reported %s", body.Error)}
	}
	return body.Result, nil
}
