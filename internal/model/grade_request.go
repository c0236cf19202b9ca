package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedBody means the request body is not JSON at all.
	ErrMalformedBody = errors.New("malformed request body")
	// ErrInvalidRequest means the body is JSON but matches neither request shape.
	ErrInvalidRequest = errors.New("invalid grade request")
)

// GradeRequest is either an InitialRequest or a ContinuationRequest.
type GradeRequest interface {
	gradeRequest()
}

// InitialRequest carries the raw grading material of a first turn.
type InitialRequest struct {
	Assignment    string `json:"assignment"`
	Rubric        string `json:"rubric"`
	StudentAnswer string `json:"studentAnswer"`
}

// ContinuationRequest carries an already assembled conversation.
type ContinuationRequest struct {
	Messages []ChatMessage `json:"messages"`
}

func (InitialRequest) gradeRequest()      {}
func (ContinuationRequest) gradeRequest() {}

// ParseGradeRequest decodes a /api/grade body. A "messages" key selects the
// continuation shape; otherwise all three initial fields must be strings.
func ParseGradeRequest(body []byte) (GradeRequest, error) {
	if !json.Valid(body) {
		return nil, ErrMalformedBody
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidRequest)
	}

	if raw, ok := fields["messages"]; ok {
		return parseContinuation(raw)
	}

	var req InitialRequest
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"assignment", &req.Assignment},
		{"rubric", &req.Rubric},
		{"studentAnswer", &req.StudentAnswer},
	} {
		raw, ok := fields[f.key]
		if !ok || isNull(raw) {
			return nil, fmt.Errorf("%w: missing field %q", ErrInvalidRequest, f.key)
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return nil, fmt.Errorf("%w: field %q must be a string", ErrInvalidRequest, f.key)
		}
	}
	return req, nil
}

func parseContinuation(raw json.RawMessage) (GradeRequest, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("%w: messages must be a list", ErrInvalidRequest)
	}
	var msgs []ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("%w: messages must be a list of {role, content}", ErrInvalidRequest)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: messages must not be empty", ErrInvalidRequest)
	}
	for i, m := range msgs {
		if !ValidRole(m.Role) {
			return nil, fmt.Errorf("%w: message %d has unsupported role %q", ErrInvalidRequest, i, m.Role)
		}
	}
	return ContinuationRequest{Messages: msgs}, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
