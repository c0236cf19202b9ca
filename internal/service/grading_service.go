// Package service contains the grading business logic.
package service

import (
	"ai-grader/internal/config"
	"ai-grader/internal/model"
	"ai-grader/internal/prompt"
	"ai-grader/pkg/llm"
	"ai-grader/pkg/log"
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed grading call.
type ErrorKind string

const (
	KindInvalidRequest ErrorKind = "invalid_request"
	KindUpstream       ErrorKind = "upstream"
	KindInternal       ErrorKind = "internal"
	KindTooLarge       ErrorKind = "request_too_large"
)

// GradeError is a failed grading call. Message is the user-facing text that
// ends up in the result field of the response.
type GradeError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *GradeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *GradeError) Unwrap() error { return e.Err }

// GradeResult holds either the model's text or a GradeError.
type GradeResult struct {
	Text string
	Err  *GradeError
}

// Response converts the result into the wire envelope. Failures keep their
// text in Result so callers reading only that field still see the message.
func (r GradeResult) Response() model.GradeResponse {
	if r.Err != nil {
		return model.GradeResponse{Result: r.Err.Message, Error: string(r.Err.Kind)}
	}
	return model.GradeResponse{Result: r.Text}
}

// GradingService forwards grading requests to the model.
type GradingService interface {
	// GradeBody parses a raw /api/grade body and grades it.
	GradeBody(ctx context.Context, body []byte) GradeResult
	// Grade sends an already parsed request to the model.
	Grade(ctx context.Context, req model.GradeRequest) GradeResult
}

type gradingService struct {
	llmClient llm.Client
	texts     config.GradingConfig
}

// NewGradingService creates a GradingService. texts supplies the fallback and
// error strings returned to callers.
func NewGradingService(llmClient llm.Client, texts config.GradingConfig) GradingService {
	return &gradingService{llmClient: llmClient, texts: texts}
}

func (s *gradingService) GradeBody(ctx context.Context, body []byte) GradeResult {
	req, err := model.ParseGradeRequest(body)
	if err != nil {
		if errors.Is(err, model.ErrInvalidRequest) {
			log.Warnw("rejected grade request", "error", err)
			return GradeResult{Err: &GradeError{Kind: KindInvalidRequest, Message: s.texts.InvalidPrefix + err.Error(), Err: err}}
		}
		log.Error("failed to parse grade request", err)
		return GradeResult{Err: &GradeError{Kind: KindInternal, Message: s.texts.FailureText, Err: err}}
	}
	return s.Grade(ctx, req)
}

func (s *gradingService) Grade(ctx context.Context, req model.GradeRequest) GradeResult {
	var messages []llm.Message
	switch r := req.(type) {
	case model.InitialRequest:
		messages = []llm.Message{{Role: model.RoleUser, Content: prompt.Grading(r.Assignment, r.Rubric, r.StudentAnswer)}}
	case model.ContinuationRequest:
		messages = make([]llm.Message, 0, len(r.Messages))
		for _, m := range r.Messages {
			messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
		}
	default:
		err := fmt.Errorf("%w: unsupported request type %T", model.ErrInvalidRequest, req)
		return GradeResult{Err: &GradeError{Kind: KindInvalidRequest, Message: s.texts.InvalidPrefix + err.Error(), Err: err}}
	}

	log.Infow("forwarding grade request", "messages", len(messages))
	text, err := s.llmClient.ChatMessages(ctx, messages, nil)
	if err == nil {
		return GradeResult{Text: text}
	}

	var apiErr *llm.APIError
	switch {
	case errors.Is(err, llm.ErrNoContent):
		log.Warnf("chat api answered without content, using fallback text")
		return GradeResult{Text: s.texts.FallbackText}
	case errors.As(err, &apiErr):
		log.Errorw("chat api returned an error", "status", apiErr.StatusCode, "body", apiErr.Body)
		return GradeResult{Err: &GradeError{Kind: KindUpstream, Message: s.texts.ErrorPrefix + apiErr.Body, Err: err}}
	default:
		log.Error("grading call failed", err)
		return GradeResult{Err: &GradeError{Kind: KindInternal, Message: s.texts.FailureText, Err: err}}
	}
}
