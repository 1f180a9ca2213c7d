package tts

import (
	"context"
	"log"
	"sync"
)

// Speaker plays one utterance at a time through an ordered list of synthesis
// strategies. A new Speak cancels whatever is still playing (newest text
// wins). Playback is best-effort: strategy failures fall through to the next
// entry, and exhausting the whole chain is logged but never surfaced to the
// caller.
//
// A Speaker with no strategies is disabled and every call is a no-op.
type Speaker struct {
	strategies []Strategy
	logger     *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSpeaker creates a speaker trying the given strategies in order.
func NewSpeaker(logger *log.Logger, strategies ...Strategy) *Speaker {
	return &Speaker{
		strategies: strategies,
		logger:     logger,
	}
}

// Enabled reports whether any synthesis strategy is configured.
func (s *Speaker) Enabled() bool {
	return len(s.strategies) > 0
}

// Speak starts speaking the text in the background and returns immediately.
// Any utterance still playing is cancelled first.
func (s *Speaker) Speak(ctx context.Context, text string) {
	if len(s.strategies) == 0 || text == "" {
		return
	}

	utterCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()

		for _, strategy := range s.strategies {
			if utterCtx.Err() != nil {
				return
			}
			err := strategy.Speak(utterCtx, text)
			if err == nil {
				return
			}
			if utterCtx.Err() != nil {
				// Superseded mid-utterance, not a synthesis failure.
				return
			}
			if s.logger != nil {
				s.logger.Printf("speaker: %s failed, trying next: %v", strategy.Name(), err)
			}
		}
		if s.logger != nil {
			s.logger.Printf("speaker: all strategies exhausted, playback abandoned")
		}
	}()
}

// Stop cancels the current utterance, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the most recently started utterance finishes.
func (s *Speaker) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
