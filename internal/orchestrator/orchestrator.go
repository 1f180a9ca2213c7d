package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asemyonov/jarvis/internal/eventlog"
	"github.com/asemyonov/jarvis/internal/llm"
	"github.com/asemyonov/jarvis/internal/session"
	"github.com/asemyonov/jarvis/internal/store"
)

// emptyReplyPlaceholder stands in for an assistant reply whose content came
// back empty; assistant turns are never stored or shown blank.
const emptyReplyPlaceholder = "—"

// persistTimeout bounds each background write to the message store.
const persistTimeout = 10 * time.Second

// ErrSendInFlight is returned by LoadHistory while a send is pending;
// replacing the turn sequence mid-send would desynchronize the optimistic
// entries from the stored view.
var ErrSendInFlight = errors.New("send in flight")

// MessageStore is the subset of the store the conversation needs.
type MessageStore interface {
	InsertMessage(ctx context.Context, m store.Message) (store.Message, error)
	ListMessagesByProject(ctx context.Context, projectID string) ([]store.Message, error)
}

// Speaker voices assistant replies. Implementations are best-effort and must
// never block the conversation.
type Speaker interface {
	Enabled() bool
	Speak(ctx context.Context, text string)
}

// Config wires a conversation's collaborators. Store and LLM are required;
// everything else degrades to a no-op when absent.
type Config struct {
	ProjectID string
	Store     MessageStore
	LLM       llm.Client
	Speaker   Speaker
	Events    *eventlog.Logger
	Session   *session.Session
	Logger    *log.Logger
}

// Conversation owns the turn sequence for one project: it appends optimistic
// turns, gates concurrent sends, drives the inference call, persists both
// sides of each exchange in the background, and voices replies.
//
// Exactly one send may be in flight at a time. A second Submit while one is
// pending is rejected, not queued. Optimistic turns are never retracted: a
// turn appended to the in-memory sequence stays visible even when its
// background write fails.
type Conversation struct {
	projectID string
	store     MessageStore
	llm       llm.Client
	speaker   Speaker
	events    *eventlog.Logger
	sess      *session.Session
	logger    *log.Logger

	mu      sync.Mutex
	turns   []store.Message
	pending bool
	input   []string // pending input buffer, fed by voice segments

	writes sync.WaitGroup
}

// New creates a conversation for cfg.ProjectID.
func New(cfg Config) *Conversation {
	return &Conversation{
		projectID: cfg.ProjectID,
		store:     cfg.Store,
		llm:       cfg.LLM,
		speaker:   cfg.Speaker,
		events:    cfg.Events,
		sess:      cfg.Session,
		logger:    cfg.Logger,
	}
}

// ProjectID returns the owning project.
func (c *Conversation) ProjectID() string { return c.projectID }

// Turns returns a snapshot of the in-memory turn sequence.
func (c *Conversation) Turns() []store.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]store.Message, len(c.turns))
	copy(out, c.turns)
	return out
}

// Busy reports whether a send is in flight.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// LoadHistory replaces the in-memory sequence with the stored turns, oldest
// first. It refuses to run while a send is pending.
func (c *Conversation) LoadHistory(ctx context.Context) error {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.mu.Unlock()

	turns, err := c.store.ListMessagesByProject(ctx, c.projectID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	c.mu.Lock()
	c.turns = turns
	c.mu.Unlock()
	return nil
}

// SetSession replaces the client session whose validity gates Submit.
// Handlers call it with the session of the authenticated request before
// submitting on its behalf.
func (c *Conversation) SetSession(s *session.Session) {
	c.mu.Lock()
	c.sess = s
	c.mu.Unlock()
}

// AppendInput adds a finalized speech segment to the pending input buffer.
func (c *Conversation) AppendInput(segment string) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return
	}
	c.mu.Lock()
	c.input = append(c.input, segment)
	c.mu.Unlock()
}

// TakeInput drains the pending input buffer and returns its joined text.
func (c *Conversation) TakeInput() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	text := strings.Join(c.input, " ")
	c.input = nil
	return text
}

// Submit runs one full exchange: append the user turn, call the model,
// append the reply (or an error turn on hard failure). It reports whether
// the send was accepted; a blank input, an expired session, or an already
// pending send all reject without touching the turn sequence.
//
// Submit blocks until the exchange completes. Persistence of both turns
// happens in the background; use WaitDurable to await it.
func (c *Conversation) Submit(ctx context.Context, rawText string) bool {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return false
	}
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess != nil && !sess.Valid() {
		c.logf("conversation %s: submit rejected, session expired", c.projectID)
		return false
	}

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		c.logEvent(eventlog.EventSendRejected, map[string]any{"reason": "send in flight"})
		return false
	}
	c.pending = true
	userTurn := store.Message{
		ID:        uuid.NewString(),
		ProjectID: c.projectID,
		Role:      "user",
		Content:   text,
		CreatedAt: time.Now(),
	}
	c.turns = append(c.turns, userTurn)
	c.input = nil
	history := c.historyLocked()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.pending = false
		c.mu.Unlock()
	}()

	c.logEvent(eventlog.EventSendStarted, map[string]any{"chars": len(text)})
	c.persistAsync(userTurn)

	reply, err := c.llm.Complete(ctx, history)
	var content string
	if err != nil {
		content = fmt.Sprintf("❌ Could not reach JARVIS: %v", err)
		c.logf("conversation %s: inference failed: %v", c.projectID, err)
		c.logEvent(eventlog.EventReplyFailed, map[string]any{"error": err.Error()})
	} else {
		content = strings.TrimSpace(reply)
		if content == "" {
			content = emptyReplyPlaceholder
			c.logEvent(eventlog.EventReplyEmpty, nil)
		} else {
			c.logEvent(eventlog.EventReplyCompleted, map[string]any{"chars": len(content)})
		}
	}

	assistantTurn := store.Message{
		ID:        uuid.NewString(),
		ProjectID: c.projectID,
		Role:      "assistant",
		Content:   content,
		CreatedAt: time.Now(),
	}
	c.mu.Lock()
	c.turns = append(c.turns, assistantTurn)
	c.mu.Unlock()

	c.persistAsync(assistantTurn)

	if c.speaker != nil && c.speaker.Enabled() {
		c.speaker.Speak(ctx, content)
	}
	return true
}

// WaitDurable blocks until every background persistence write issued so far
// has settled, successfully or not.
func (c *Conversation) WaitDurable() {
	c.writes.Wait()
}

// historyLocked maps the turn sequence to the wire shape. Caller holds mu.
func (c *Conversation) historyLocked() []llm.Message {
	history := make([]llm.Message, len(c.turns))
	for i, t := range c.turns {
		history[i] = llm.Message{Role: t.Role, Content: t.Content}
	}
	return history
}

// persistAsync writes a turn to the store without blocking the exchange. A
// failed write is logged and recorded; the in-memory turn stays visible. On
// success the stored creation time replaces the optimistic one.
func (c *Conversation) persistAsync(m store.Message) {
	c.writes.Add(1)
	go func() {
		defer c.writes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		stored, err := c.store.InsertMessage(ctx, m)
		if err != nil {
			c.logf("conversation %s: persist %s turn failed: %v", c.projectID, m.Role, err)
			c.logEvent(eventlog.EventPersistFailed, map[string]any{
				"role":  m.Role,
				"error": err.Error(),
			})
			return
		}

		c.mu.Lock()
		for i := range c.turns {
			if c.turns[i].ID == m.ID {
				c.turns[i].CreatedAt = stored.CreatedAt
				break
			}
		}
		c.mu.Unlock()
	}()
}

func (c *Conversation) logEvent(event eventlog.EventType, data map[string]any) {
	if c.events != nil {
		c.events.LogAsync(c.projectID, event, data)
	}
}

func (c *Conversation) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
