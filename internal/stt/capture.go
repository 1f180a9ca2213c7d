package stt

import (
	"context"
	"log"
	"strings"
	"sync"
)

// State is the capture lifecycle state.
type State int

const (
	Idle State = iota
	Listening
)

// Capture wraps a continuous recognition session behind a small state
// machine: Idle → Listening → Idle. The transcript (finalized segments plus
// the current interim phrase) is rebuilt on every session start and each
// finalized segment is also forwarded individually to the OnFinal callback,
// so the caller can react per utterance instead of waiting for the session
// to end.
//
// A Capture built with a nil factory is inert: Start keeps it Idle and
// reports no error. Voice input is optional, never fatal.
type Capture struct {
	factory EngineFactory
	onFinal func(text string)
	logger  *log.Logger

	mu      sync.Mutex
	state   State
	engine  Engine
	cancel  context.CancelFunc
	gen     int // session generation; stale session events are dropped
	finals  []string
	interim string
}

// NewCapture creates a capture wrapper. onFinal may be nil.
func NewCapture(factory EngineFactory, onFinal func(text string), logger *log.Logger) *Capture {
	return &Capture{
		factory: factory,
		onFinal: onFinal,
		logger:  logger,
	}
}

// Supported reports whether a recognition engine is available at all.
func (c *Capture) Supported() bool {
	return c.factory != nil
}

// Listening reports whether a session is active.
func (c *Capture) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Listening
}

// Start opens a recognition session and transitions to Listening, clearing
// the transcript. It is a no-op while already Listening, and a no-op for an
// inert instance.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Listening || c.factory == nil {
		c.mu.Unlock()
		return nil
	}
	c.finals = nil
	c.interim = ""
	c.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	engine, err := c.factory(sessionCtx)
	if err != nil {
		cancel()
		return err
	}

	c.mu.Lock()
	if c.state == Listening {
		// Lost the race against a concurrent Start; keep the first session.
		c.mu.Unlock()
		cancel()
		_ = engine.Close()
		return nil
	}
	c.state = Listening
	c.engine = engine
	c.cancel = cancel
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.consume(engine, gen)
	return nil
}

// Stop closes the session and returns to Idle. Calling it while already
// Idle is a no-op.
func (c *Capture) Stop() {
	c.mu.Lock()
	if c.state != Listening {
		c.mu.Unlock()
		return
	}
	engine := c.engine
	cancel := c.cancel
	c.state = Idle
	c.engine = nil
	c.cancel = nil
	c.gen++
	c.mu.Unlock()

	cancel()
	_ = engine.Close()
}

// StreamAudio forwards audio to the active session. Audio arriving while
// Idle is dropped.
func (c *Capture) StreamAudio(ctx context.Context, audio []byte) error {
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	if engine == nil {
		return nil
	}
	return engine.StreamAudio(ctx, audio)
}

// Transcript returns the accumulated finalized text followed by the current
// interim phrase.
func (c *Capture) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := c.finals
	if c.interim != "" {
		parts = append(append([]string{}, parts...), c.interim)
	}
	return strings.Join(parts, " ")
}

// consume drains one session's event channels until the session ends, then
// transitions back to Idle. Events from a superseded session are ignored.
func (c *Capture) consume(engine Engine, gen int) {
	for {
		select {
		case err, ok := <-engine.Errors():
			if ok && err != nil {
				if c.logger != nil {
					c.logger.Printf("capture: recognition error: %v", err)
				}
			}
			c.endSession(gen)
			return

		case result, ok := <-engine.Results():
			if !ok {
				c.endSession(gen)
				return
			}
			c.handleResult(gen, result)
		}
	}
}

func (c *Capture) handleResult(gen int, result Result) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	var cb func(string)
	if result.IsFinal {
		c.interim = ""
		if result.Text != "" {
			c.finals = append(c.finals, result.Text)
			cb = c.onFinal
		}
	} else {
		c.interim = result.Text
	}
	c.mu.Unlock()

	if cb != nil {
		cb(result.Text)
	}
}

// endSession moves back to Idle if the given session is still the current
// one (engine error or engine-initiated end-of-session).
func (c *Capture) endSession(gen int) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	engine := c.engine
	c.state = Idle
	c.engine = nil
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if engine != nil {
		_ = engine.Close()
	}
}
