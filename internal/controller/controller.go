// Package controller owns the conversation of one grading session: it builds
// the initial prompt, appends follow-up turns, talks to the grading proxy and
// drives the typewriter reveal of the newest assistant reply.
package controller

import (
	"ai-grader/internal/model"
	"ai-grader/internal/prompt"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	// ErrBusy is returned when a submission arrives while a call is in flight.
	ErrBusy = errors.New("a grading request is already in flight")
	// ErrUnknownPreset is returned for a preset outside the fixed set.
	ErrUnknownPreset = errors.New("unknown follow-up preset")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller is closed")

	errInterrupted = errors.New("grading call did not return")
)

// DefaultRevealInterval is the typewriter tick.
const DefaultRevealInterval = 15 * time.Millisecond

// Proxy sends a whole conversation to the grading proxy and returns the reply.
type Proxy interface {
	Send(ctx context.Context, messages []model.ChatMessage) (string, error)
}

// View receives the controller's output. Render follows every state change;
// Reveal follows every reveal tick and doubles as the scroll-to-bottom cue.
type View interface {
	Render(state State)
	Reveal(text string, done bool)
}

// State is what a view needs to draw the assessment panel.
type State struct {
	// Messages omits the synthesized initial prompt.
	Messages    []model.ChatMessage `json:"messages"`
	Busy        bool                `json:"busy"`
	Error       string              `json:"error,omitempty"`
	CanFollowUp bool                `json:"canFollowUp"`
	Presets     []string            `json:"presets"`
}

// Options tunes a Controller. Zero values pick the defaults.
type Options struct {
	RevealInterval time.Duration
	// FailureText is shown when an error carries no user-facing message.
	FailureText string
	// NewTicker replaces time.NewTicker; tests drive reveals by hand with it.
	NewTicker TickerFunc
}

type noopView struct{}

func (noopView) Render(State)        {}
func (noopView) Reveal(string, bool) {}

// Controller is safe for concurrent use, but accepts one submission at a time.
type Controller struct {
	mu           sync.Mutex
	proxy        Proxy
	view         View
	revealer     *Revealer
	failureText  string
	conversation []model.ChatMessage
	busy         bool
	errMsg       string
	closed       bool
}

// New creates a Controller sending through proxy and reporting to view.
func New(proxy Proxy, view View, opts Options) *Controller {
	if view == nil {
		view = noopView{}
	}
	if opts.RevealInterval <= 0 {
		opts.RevealInterval = DefaultRevealInterval
	}
	if opts.FailureText == "" {
		opts.FailureText = "Något gick fel."
	}
	return &Controller{
		proxy:       proxy,
		view:        view,
		failureText: opts.FailureText,
		revealer:    NewRevealer(opts.RevealInterval, opts.NewTicker, view.Reveal),
	}
}

// SubmitInitial starts a new session. Empty fields are allowed.
func (c *Controller) SubmitInitial(ctx context.Context, assignment, rubric, studentAnswer string) error {
	initial := model.ChatMessage{Role: model.RoleUser, Content: prompt.Initial(assignment, rubric, studentAnswer)}
	conv, err := c.begin(func([]model.ChatMessage) []model.ChatMessage {
		return []model.ChatMessage{initial}
	})
	if err != nil {
		return err
	}
	return c.send(ctx, conv)
}

// SubmitFollowUp appends text as a user turn and sends the whole
// conversation. Empty or whitespace-only text is ignored.
func (c *Controller) SubmitFollowUp(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	conv, err := c.begin(func(prev []model.ChatMessage) []model.ChatMessage {
		return appendMessage(prev, model.ChatMessage{Role: model.RoleUser, Content: text})
	})
	if err != nil {
		return err
	}
	return c.send(ctx, conv)
}

// SubmitQuickFollowUp sends one of the canned follow-up questions.
func (c *Controller) SubmitQuickFollowUp(ctx context.Context, preset Preset) error {
	text, ok := preset.Text()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPreset, preset)
	}
	return c.SubmitFollowUp(ctx, text)
}

// StopReveal shows the rest of the current reveal at once.
func (c *Controller) StopReveal() {
	c.revealer.Finish()
}

// Close cancels any running reveal. Calls still in flight settle normally but
// no longer start a reveal.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.revealer.Cancel()
}

// Conversation returns a copy of the full conversation, initial prompt included.
func (c *Controller) Conversation() []model.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.ChatMessage(nil), c.conversation...)
}

// State returns the current view state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// RevealText returns the revealed part of the newest assistant reply.
func (c *Controller) RevealText() string {
	return c.revealer.Text()
}

// begin moves Idle -> Submitting and installs the next conversation snapshot.
func (c *Controller) begin(next func([]model.ChatMessage) []model.ChatMessage) ([]model.ChatMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.busy = true
	c.errMsg = ""
	c.conversation = next(c.conversation)
	conv := c.conversation
	state := c.stateLocked()
	c.revealer.Cancel()
	c.mu.Unlock()

	c.view.Render(state)
	return conv, nil
}

// send runs the network call. finish runs exactly once, even if the proxy panics.
func (c *Controller) send(ctx context.Context, conv []model.ChatMessage) error {
	settled := false
	defer func() {
		if !settled {
			c.finish("", errInterrupted)
		}
	}()

	reply, err := c.proxy.Send(ctx, conv)
	settled = true
	c.finish(reply, err)
	return err
}

// finish moves Submitting -> Idle and starts the reveal when the newest
// message is an assistant reply.
func (c *Controller) finish(reply string, err error) {
	c.mu.Lock()
	c.busy = false
	if err != nil {
		c.errMsg = c.userMessage(err)
	} else {
		c.conversation = appendMessage(c.conversation, model.ChatMessage{Role: model.RoleAssistant, Content: reply})
	}
	state := c.stateLocked()
	// Prepare under c.mu so a submission that begins before Run cancels it.
	var revealGen uint64
	if n := len(c.conversation); n > 0 && !c.closed && c.conversation[n-1].Role == model.RoleAssistant {
		revealGen = c.revealer.Prepare(c.conversation[n-1].Content)
	}
	c.mu.Unlock()

	if revealGen != 0 {
		c.revealer.Run(revealGen)
	}
	c.view.Render(state)
}

func (c *Controller) userMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return c.failureText
}

func (c *Controller) stateLocked() State {
	var visible []model.ChatMessage
	if len(c.conversation) > 1 {
		visible = append(visible, c.conversation[1:]...)
	}
	return State{
		Messages:    visible,
		Busy:        c.busy,
		Error:       c.errMsg,
		CanFollowUp: len(c.conversation) > 1 && !c.busy,
		Presets:     Presets(),
	}
}

// appendMessage returns a new snapshot; earlier snapshots are never modified.
func appendMessage(conv []model.ChatMessage, m model.ChatMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, len(conv), len(conv)+1)
	copy(out, conv)
	return append(out, m)
}
