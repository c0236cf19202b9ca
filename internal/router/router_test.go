package router

import (
	"ai-grader/internal/client"
	"ai-grader/internal/config"
	"ai-grader/internal/controller"
	"ai-grader/internal/model"
	"ai-grader/internal/service"
	"ai-grader/pkg/llm"
	"ai-grader/pkg/log"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testKey = "sk-or-secret-key"

var texts = config.GradingConfig{
	ErrorPrefix:       "Fel från OpenRouter: ",
	FallbackText:      "Inget svar från AI.",
	FailureText:       "Något gick fel vid AI-bedömning.",
	InvalidPrefix:     "Ogiltig begäran: ",
	ClientFailureText: "Något gick fel.",
	UnreachableText:   "Kunde inte kontakta AI-servern.",
}

// newStack serves the whole app against a fake provider.
func newStack(t *testing.T, provider http.HandlerFunc) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(provider)
	t.Cleanup(upstream.Close)

	llmClient := llm.NewClient(config.LLMConfig{
		BaseURL: upstream.URL,
		Model:   "gpt-3.5-turbo",
		Timeout: 5 * time.Second,
	}, func() string { return testKey })

	app := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(app.Close)
	app.Config.Handler = New(Deps{
		GradingService: service.NewGradingService(llmClient, texts),
		Proxy:          client.NewGradeClient(app.URL, 5*time.Second, texts),
		Session:        controller.Options{RevealInterval: time.Millisecond, FailureText: texts.ClientFailureText},
		MaxBodyBytes:   4096,
		TooLargeText:   "Begäran är för stor.",
	})
	return app
}

func reply(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []interface{}{map[string]interface{}{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}
}

func postGrade(t *testing.T, app *httptest.Server, body string) (int, model.GradeResponse) {
	t.Helper()
	resp, err := http.Post(app.URL+"/api/grade", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out model.GradeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return resp.StatusCode, out
}

func TestGrade_UpstreamErrorBodyReachesCaller(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log.Set(zap.New(core))
	t.Cleanup(func() { log.Set(zap.NewNop()) })

	app := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	})

	status, out := postGrade(t, app, `{"assignment":"A","rubric":"R","studentAnswer":"S"}`)
	if status != http.StatusOK {
		t.Errorf("Expected 200, got %d", status)
	}
	if out.Result != "Fel från OpenRouter: boom" {
		t.Errorf("unexpected result %q", out.Result)
	}

	for _, e := range logs.All() {
		line := e.Message
		for k, v := range e.ContextMap() {
			line += " " + k + "=" + toString(v)
		}
		if strings.Contains(line, testKey) {
			t.Fatalf("API key leaked into logs: %s", line)
		}
	}
}

func toString(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestGrade_Shapes(t *testing.T) {
	app := newStack(t, reply("Betyg: B\nMotivering: bra"))

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantResult string
	}{
		{"initial", `{"assignment":"A","rubric":"R","studentAnswer":"S"}`, http.StatusOK, "Betyg: B\nMotivering: bra"},
		{"continuation", `{"messages":[{"role":"user","content":"hej"}]}`, http.StatusOK, "Betyg: B\nMotivering: bra"},
		{"malformed", `{"assignment":`, http.StatusOK, texts.FailureText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := postGrade(t, app, tt.body)
			if status != tt.wantStatus || out.Result != tt.wantResult {
				t.Errorf("Expected %d %q, got %d %q", tt.wantStatus, tt.wantResult, status, out.Result)
			}
		})
	}

	status, out := postGrade(t, app, `{"messages":[{"role":"system","content":"x"}]}`)
	if status != http.StatusBadRequest || out.Error != "invalid_request" {
		t.Errorf("Expected 400 invalid_request, got %d %+v", status, out)
	}
}

func TestStaticRoutes(t *testing.T) {
	app := newStack(t, reply("x"))

	resp, err := http.Get(app.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(page), "/ws/session") {
		t.Errorf("index not served: %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected a request ID header")
	}

	resp, err = http.Get(app.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected healthz 200, got %d", resp.StatusCode)
	}
}

type frame struct {
	Type  string           `json:"type"`
	State controller.State `json:"state"`
	Text  string           `json:"text"`
	Done  bool             `json:"done"`
}

// The session talks to /api/grade over HTTP, so this covers the whole loop.
func TestSession_FollowUpThroughProxy(t *testing.T) {
	var calls [][]model.ChatMessage
	callCh := make(chan struct{}, 4)
	app := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []model.ChatMessage `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		calls = append(calls, req.Messages)
		reply("svar " + string(rune('0'+len(calls))))(w, r)
		callCh <- struct{}{}
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(app.URL, "http")+"/ws/session", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	waitIdle := func(n int) controller.State {
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if f.Type == "state" && !f.State.Busy && len(f.State.Messages) == n {
				return f.State
			}
		}
	}
	waitIdle(0)

	_ = conn.WriteJSON(map[string]string{"type": "initial", "assignment": "A", "rubric": "R", "studentAnswer": "S"})
	st := waitIdle(1)
	if st.Error != "" || st.Messages[0].Content != "svar 1" {
		t.Fatalf("unexpected state %+v", st)
	}
	<-callCh

	_ = conn.WriteJSON(map[string]interface{}{"type": "quick", "preset": 0})
	st = waitIdle(3)
	<-callCh
	if st.Messages[1].Content != "Motivera djupare" || st.Messages[2].Content != "svar 2" {
		t.Errorf("unexpected transcript %+v", st.Messages)
	}
	if len(calls) != 2 || len(calls[1]) != 3 || calls[1][1].Content != "svar 1" {
		t.Errorf("Expected the full conversation to be resent, got %+v", calls)
	}
}

func TestGrade_OversizedBodyIsRejected(t *testing.T) {
	called := false
	app := newStack(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		reply("x")(w, r)
	})

	body := `{"assignment":"` + strings.Repeat("a", 8192) + `","rubric":"R","studentAnswer":"S"}`
	status, out := postGrade(t, app, body)
	if status != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", status)
	}
	if out.Result != "Begäran är för stor." || out.Error != "request_too_large" {
		t.Errorf("unexpected envelope %+v", out)
	}
	if called {
		t.Error("Expected no provider call for an oversized body")
	}
}
