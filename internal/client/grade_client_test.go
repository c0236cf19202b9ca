package client

import (
	"ai-grader/internal/config"
	"ai-grader/internal/model"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var texts = config.GradingConfig{
	ClientFailureText: "Något gick fel.",
	UnreachableText:   "Kunde inte kontakta AI-servern.",
}

func TestSend_PostsConversation(t *testing.T) {
	var got struct {
		Messages []model.ChatMessage `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/grade" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"result":"Betyg: C"}`))
	}))
	defer srv.Close()

	conv := []model.ChatMessage{
		{Role: model.RoleUser, Content: "prompt"},
		{Role: model.RoleAssistant, Content: "Betyg: B"},
		{Role: model.RoleUser, Content: "Motivera djupare"},
	}
	reply, err := NewGradeClient(srv.URL, time.Second, texts).Send(context.Background(), conv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Betyg: C" {
		t.Errorf("Expected %q, got %q", "Betyg: C", reply)
	}
	if len(got.Messages) != 3 || got.Messages[2].Content != "Motivera djupare" {
		t.Errorf("conversation not sent verbatim: %+v", got.Messages)
	}
}

func TestSend_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"error field", http.StatusOK, `{"result":"Fel från OpenRouter: boom","error":"upstream"}`, "Fel från OpenRouter: boom"},
		{"non 2xx with result", http.StatusBadRequest, `{"result":"Ogiltig begäran: x","error":"invalid_request"}`, "Ogiltig begäran: x"},
		{"non 2xx without result", http.StatusBadGateway, `{}`, "Något gick fel."},
		{"not json", http.StatusOK, `<html>`, "Kunde inte kontakta AI-servern."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewGradeClient(srv.URL, time.Second, texts).Send(context.Background(), nil)
			var re *ReplyError
			if !errors.As(err, &re) {
				t.Fatalf("Expected *ReplyError, got %v", err)
			}
			if re.UserMessage() != tt.wantMsg {
				t.Errorf("Expected %q, got %q", tt.wantMsg, re.UserMessage())
			}
		})
	}
}

func TestSend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewGradeClient(url, time.Second, texts).Send(context.Background(), nil)
	var re *ReplyError
	if !errors.As(err, &re) || re.UserMessage() != texts.UnreachableText {
		t.Fatalf("Expected unreachable ReplyError, got %v", err)
	}
}
