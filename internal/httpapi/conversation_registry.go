package httpapi

import (
	"sync"
	"sync/atomic"

	"github.com/asemyonov/jarvis/internal/orchestrator"
)

// ConversationRegistry holds one orchestrator per project and tracks active
// voice sessions for graceful draining. When draining is enabled, new
// sessions and sends are rejected while in-flight ones finish naturally.
//
// The mu mutex makes the draining check and wg.Add atomic in Acquire(),
// preventing a TOCTOU race where StartDraining+Wait could be called between
// the draining check and wg.Add.
type ConversationRegistry struct {
	mu            sync.Mutex
	draining      bool
	wg            sync.WaitGroup
	count         atomic.Int64
	conversations map[string]*orchestrator.Conversation
	factory       func(projectID string) *orchestrator.Conversation
}

// NewConversationRegistry creates a registry that builds conversations with
// the given factory on first use.
func NewConversationRegistry(factory func(projectID string) *orchestrator.Conversation) *ConversationRegistry {
	return &ConversationRegistry{
		conversations: make(map[string]*orchestrator.Conversation),
		factory:       factory,
	}
}

// Get returns the conversation for a project, creating it on first access.
// It returns nil while the registry is draining.
func (cr *ConversationRegistry) Get(projectID string) *orchestrator.Conversation {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if cr.draining {
		return nil
	}
	conv, ok := cr.conversations[projectID]
	if !ok {
		conv = cr.factory(projectID)
		cr.conversations[projectID] = conv
	}
	return conv
}

// Remove drops a project's conversation, e.g. when the project is deleted.
func (cr *ConversationRegistry) Remove(projectID string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	delete(cr.conversations, projectID)
}

// Acquire registers a new active voice session. Returns false if the
// registry is draining, meaning no new sessions should be accepted. The
// draining check and WaitGroup increment are performed atomically under a
// mutex.
func (cr *ConversationRegistry) Acquire() bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if cr.draining {
		return false
	}
	cr.wg.Add(1)
	cr.count.Add(1)
	return true
}

// Release marks a session as completed. Must be called exactly once per
// successful Acquire.
func (cr *ConversationRegistry) Release() {
	cr.count.Add(-1)
	cr.wg.Done()
}

// StartDraining sets the draining flag so that future Acquire and Get calls
// are rejected. Safe to call concurrently with Acquire.
func (cr *ConversationRegistry) StartDraining() {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (cr *ConversationRegistry) IsDraining() bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.draining
}

// ActiveCount returns the number of currently active voice sessions.
func (cr *ConversationRegistry) ActiveCount() int64 {
	return cr.count.Load()
}

// Wait blocks until all active sessions have completed.
func (cr *ConversationRegistry) Wait() {
	cr.wg.Wait()
}

// WaitDurable blocks until every conversation's pending writes settle. Used
// during shutdown so buffered turns reach the store.
func (cr *ConversationRegistry) WaitDurable() {
	cr.mu.Lock()
	convs := make([]*orchestrator.Conversation, 0, len(cr.conversations))
	for _, c := range cr.conversations {
		convs = append(convs, c)
	}
	cr.mu.Unlock()

	for _, c := range convs {
		c.WaitDurable()
	}
}
