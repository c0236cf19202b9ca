package controller

import (
	"sync"
	"sync/atomic"
	"time"
)

// TickerFunc starts a ticker firing every d. The returned func stops it.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Revealer replays a text one code point per tick. It owns at most one
// running ticker; preparing a new reveal, Cancel and the final tick all stop
// the previous one.
//
// Every reveal opens with an empty frame, so a view never shows the new text
// before the typewriter has started. Frames are emitted outside the state
// lock and dropped once their generation is stale; Cancel does not wait for a
// frame that is already being written.
type Revealer struct {
	mu        sync.Mutex
	emitMu    sync.Mutex
	interval  time.Duration
	newTicker TickerFunc
	onTick    func(text string, done bool)

	target []rune
	shown  int
	gen    atomic.Uint64
	stop   func()
}

// NewRevealer creates a Revealer. A nil newTicker uses time.NewTicker.
func NewRevealer(interval time.Duration, newTicker TickerFunc, onTick func(text string, done bool)) *Revealer {
	if newTicker == nil {
		newTicker = realTicker
	}
	if onTick == nil {
		onTick = func(string, bool) {}
	}
	return &Revealer{interval: interval, newTicker: newTicker, onTick: onTick}
}

// Start clears the buffer and begins revealing content.
func (r *Revealer) Start(content string) {
	r.Run(r.Prepare(content))
}

// Prepare stops any running reveal and loads content without emitting
// anything. The returned generation is passed to Run.
func (r *Revealer) Prepare(content string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	r.target = []rune(content)
	r.shown = 0
	return r.gen.Add(1)
}

// Run emits the cleared buffer for gen and starts its ticker. It does nothing
// if gen was superseded or cancelled since Prepare.
func (r *Revealer) Run(gen uint64) {
	r.mu.Lock()
	if r.gen.Load() != gen || r.stop != nil {
		r.mu.Unlock()
		return
	}
	empty := len(r.target) == 0
	r.mu.Unlock()

	if !r.emit(gen, "", empty) || empty {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen.Load() != gen || r.stop != nil {
		return
	}
	ticks, stopTicker := r.newTicker(r.interval)
	quit := make(chan struct{})
	r.stop = func() {
		stopTicker()
		close(quit)
	}
	go r.run(gen, ticks, quit)
}

func (r *Revealer) run(gen uint64, ticks <-chan time.Time, quit <-chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case <-ticks:
			if done := r.advance(gen); done {
				return
			}
		}
	}
}

// advance reveals one more code point. It reports true once the reveal for
// gen is over, whether finished or superseded.
func (r *Revealer) advance(gen uint64) bool {
	r.mu.Lock()
	if r.gen.Load() != gen || r.stop == nil {
		r.mu.Unlock()
		return true
	}
	r.shown++
	text := string(r.target[:r.shown])
	done := r.shown >= len(r.target)
	if done {
		r.stopLocked()
	}
	r.mu.Unlock()

	r.emit(gen, text, done)
	return done
}

// Finish jumps to the full text of the running reveal and stops it.
func (r *Revealer) Finish() {
	r.mu.Lock()
	if r.stop == nil {
		r.mu.Unlock()
		return
	}
	r.stopLocked()
	r.shown = len(r.target)
	text := string(r.target)
	// A tick already past the lock must not land after the final frame.
	gen := r.gen.Add(1)
	r.mu.Unlock()

	r.emit(gen, text, true)
}

// Cancel stops the running reveal, leaving the buffer where it is.
func (r *Revealer) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.gen.Add(1)
}

// Text returns the revealed part of the current text.
func (r *Revealer) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.target[:r.shown])
}

// Active reports whether a ticker is running.
func (r *Revealer) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

// emit hands a frame to onTick unless gen is stale. Frames are delivered one
// at a time and in order.
func (r *Revealer) emit(gen uint64, text string, done bool) bool {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	if r.gen.Load() != gen {
		return false
	}
	r.onTick(text, done)
	return true
}

func (r *Revealer) stopLocked() {
	if r.stop != nil {
		r.stop()
		r.stop = nil
	}
}
