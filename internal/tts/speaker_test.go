package tts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubStrategy records utterances and either succeeds, fails, or blocks
// until cancelled.
type stubStrategy struct {
	name  string
	err   error
	block bool

	mu     sync.Mutex
	spoken []string
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func (s *stubStrategy) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.spoken...)
}

func TestSpeakerPrimarySucceeds(t *testing.T) {
	primary := &stubStrategy{name: "primary"}
	fallback := &stubStrategy{name: "fallback"}
	speaker := NewSpeaker(nil, primary, fallback)

	speaker.Speak(context.Background(), "hello")
	speaker.Wait()

	if got := primary.texts(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("primary spoke %v, want [hello]", got)
	}
	if got := fallback.texts(); len(got) != 0 {
		t.Errorf("fallback spoke %v, want nothing when primary succeeds", got)
	}
}

func TestSpeakerFallsThroughOnFailure(t *testing.T) {
	primary := &stubStrategy{name: "primary", err: errors.New("network down")}
	fallback := &stubStrategy{name: "fallback"}
	speaker := NewSpeaker(nil, primary, fallback)

	speaker.Speak(context.Background(), "hello")
	speaker.Wait()

	if got := fallback.texts(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("fallback spoke %v, want the same text as the primary", got)
	}
}

func TestSpeakerAllStrategiesExhausted(t *testing.T) {
	primary := &stubStrategy{name: "primary", err: errors.New("network down")}
	fallback := &stubStrategy{name: "fallback", err: errors.New("binary missing")}
	speaker := NewSpeaker(nil, primary, fallback)

	// Total failure is absorbed: no panic, no error surface.
	speaker.Speak(context.Background(), "hello")
	speaker.Wait()
}

func TestSpeakerNewestTextWins(t *testing.T) {
	first := &stubStrategy{name: "blocking", block: true}
	speaker := NewSpeaker(nil, first)

	speaker.Speak(context.Background(), "first")
	waitFor(t, func() bool { return len(first.texts()) == 1 })

	speaker.Speak(context.Background(), "second")
	speaker.Wait()

	got := first.texts()
	if len(got) != 2 || got[1] != "second" {
		t.Fatalf("spoken = %v, want the second utterance to start", got)
	}
}

func TestSpeakerCancelDoesNotTriggerFallback(t *testing.T) {
	primary := &stubStrategy{name: "blocking", block: true}
	fallback := &stubStrategy{name: "fallback"}
	speaker := NewSpeaker(nil, primary, fallback)

	speaker.Speak(context.Background(), "first")
	waitFor(t, func() bool { return len(primary.texts()) == 1 })

	speaker.Stop()
	speaker.Wait()

	if got := fallback.texts(); len(got) != 0 {
		t.Errorf("fallback spoke %v after a cancellation, want nothing", got)
	}
}

func TestSpeakerDisabled(t *testing.T) {
	speaker := NewSpeaker(nil)

	if speaker.Enabled() {
		t.Error("speaker without strategies should report disabled")
	}
	speaker.Speak(context.Background(), "hello") // no-op
	speaker.Stop()
	speaker.Wait()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
