package handler

import (
	"ai-grader/internal/controller"
	"ai-grader/pkg/log"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // same-page app, served from this host or a dev server
	},
}

// Commands a browser sends over the session socket.
const (
	cmdInitial  = "initial"
	cmdFollowUp = "followup"
	cmdQuick    = "quick"
	cmdStop     = "stop"
)

type sessionCommand struct {
	Type          string `json:"type"`
	Assignment    string `json:"assignment"`
	Rubric        string `json:"rubric"`
	StudentAnswer string `json:"studentAnswer"`
	Text          string `json:"text"`
	Preset        int    `json:"preset"`
}

// SessionHandler gives every websocket connection its own conversation
// controller. The browser only renders what the controller pushes.
type SessionHandler struct {
	proxy controller.Proxy
	opts  controller.Options
}

// NewSessionHandler creates a SessionHandler whose controllers send through proxy.
func NewSessionHandler(proxy controller.Proxy, opts controller.Options) *SessionHandler {
	return &SessionHandler{proxy: proxy, opts: opts}
}

// Handle serves GET /ws/session.
func (h *SessionHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log.Infow("grading session opened", "sessionId", sessionID)

	view := &wsView{conn: conn, sessionID: sessionID}
	ctrl := controller.New(h.proxy, view, h.opts)
	view.Render(ctrl.State())

	ctx, cancel := context.WithCancel(c.Request.Context())
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
		ctrl.Close()
		log.Infow("grading session closed", "sessionId", sessionID)
	}()

	submit := func(kind string, fn func() error) {
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			// Outside gin's Recovery: a panicking turn must not take the server down.
			defer func() {
				if p := recover(); p != nil {
					log.Errorw("grading turn panicked", "sessionId", sessionID, "command", kind, "panic", p)
				}
			}()
			if err := fn(); err != nil {
				h.reportSubmitError(view, kind, err)
			}
		}()
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("session %s: read failed: %v", sessionID, err)
			}
			return
		}

		var cmd sessionCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			view.sendError("Ogiltigt kommando.")
			continue
		}

		switch cmd.Type {
		case cmdInitial:
			submit(cmd.Type, func() error {
				return ctrl.SubmitInitial(ctx, cmd.Assignment, cmd.Rubric, cmd.StudentAnswer)
			})
		case cmdFollowUp:
			submit(cmd.Type, func() error { return ctrl.SubmitFollowUp(ctx, cmd.Text) })
		case cmdQuick:
			submit(cmd.Type, func() error { return ctrl.SubmitQuickFollowUp(ctx, controller.Preset(cmd.Preset)) })
		case cmdStop:
			ctrl.StopReveal()
		default:
			view.sendError("Okänt kommando: " + cmd.Type)
		}
	}
}

// reportSubmitError tells the browser about rejected submissions. Failed
// grading calls are already visible through the rendered state.
func (h *SessionHandler) reportSubmitError(view *wsView, kind string, err error) {
	switch {
	case errors.Is(err, controller.ErrBusy):
		view.sendError("AI tänker redan, vänta på svaret.")
	case errors.Is(err, controller.ErrUnknownPreset):
		view.sendError("Okänd snabbfråga.")
	case errors.Is(err, controller.ErrClosed), errors.Is(err, context.Canceled):
	default:
		log.Warnw("grading turn failed", "sessionId", view.sessionID, "command", kind, "error", err)
	}
}

type stateFrame struct {
	Type  string           `json:"type"`
	State controller.State `json:"state"`
}

type revealFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wsView serializes controller output onto one websocket connection.
type wsView struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	broken    bool
}

func (v *wsView) Render(state controller.State) {
	v.write(stateFrame{Type: "state", State: state})
}

func (v *wsView) Reveal(text string, done bool) {
	v.write(revealFrame{Type: "reveal", Text: text, Done: done})
}

func (v *wsView) sendError(msg string) {
	v.write(errorFrame{Type: "error", Message: msg})
}

func (v *wsView) write(frame interface{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.broken {
		return
	}
	_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := v.conn.WriteJSON(frame); err != nil {
		v.broken = true
		log.Warnf("session %s: write failed: %v", v.sessionID, err)
	}
}
