package tts

import "context"

// Client defines the interface for networked text-to-speech providers.
type Client interface {
	// Synthesize converts text to speech and returns audio data.
	// The returned audio is in the format specified by the provider config.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// SynthesizeStream converts text to speech and streams audio chunks.
	// Each chunk is sent to the returned channel.
	SynthesizeStream(ctx context.Context, text string) (<-chan []byte, error)
}

// Strategy is one way of turning text into audible speech. Speaker tries
// strategies in order until one succeeds.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Speak renders the text audibly, blocking until playback finishes or
	// the context is cancelled.
	Speak(ctx context.Context, text string) error
}

// AudioSink receives synthesized audio for playout, e.g. a WebSocket media
// stream toward the client.
type AudioSink interface {
	Play(ctx context.Context, audio []byte) error
}
