package stt

import "context"

// Result is one recognition event from a live session.
type Result struct {
	Text       string  // transcribed text for the current phrase
	Confidence float64 // confidence score (0-1)
	IsFinal    bool    // whether the phrase is finalized or still interim
}

// Engine is one live speech-to-text session.
type Engine interface {
	// StreamAudio forwards raw audio to the recognition service.
	StreamAudio(ctx context.Context, audio []byte) error

	// Results returns the channel of recognition events. It is closed when
	// the session ends.
	Results() <-chan Result

	// Errors returns the channel of session errors.
	Errors() <-chan error

	// Close terminates the session.
	Close() error
}

// EngineFactory opens a new recognition session. Capture invokes it on each
// transition into the listening state. A nil factory means the capability is
// absent and capture degrades to a permanently idle instance.
type EngineFactory func(ctx context.Context) (Engine, error)
