package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

const deepgramWSURL = "wss://api.deepgram.com/v1/listen"

// DeepgramClient implements the Engine interface using Deepgram's streaming
// API over a WebSocket.
type DeepgramClient struct {
	conn      *websocket.Conn
	results   chan Result
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	wg        sync.WaitGroup // waits for readLoop before channels close
}

// DeepgramConfig holds configuration for the Deepgram client.
type DeepgramConfig struct {
	APIKey      string
	Language    string // e.g., "ru" (default)
	Model       string // e.g., "nova-3" (default)
	SampleRate  int    // default 16000, matching browser microphone capture
	Encoding    string // default "linear16"
	Endpointing int    // milliseconds of silence that finalizes a phrase, 0 for default
}

// deepgramResponse is a Deepgram WebSocket result message.
type deepgramResponse struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal bool `json:"is_final"`
}

// NewDeepgramClient opens a streaming recognition session. Interim results
// are always requested; Capture keeps them visible as the live transcript.
func NewDeepgramClient(ctx context.Context, cfg DeepgramConfig) (*DeepgramClient, error) {
	language := cfg.Language
	if language == "" {
		language = "ru"
	}
	model := cfg.Model
	if model == "" {
		model = "nova-3"
	}
	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "linear16"
	}

	url := fmt.Sprintf("%s?model=%s&language=%s&encoding=%s&sample_rate=%d&channels=1&punctuate=true&interim_results=true",
		deepgramWSURL, model, language, encoding, sampleRate)
	if cfg.Endpointing > 0 {
		url += fmt.Sprintf("&endpointing=%d", cfg.Endpointing)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram: %w", err)
	}

	client := &DeepgramClient{
		conn:    conn,
		results: make(chan Result, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}

	client.wg.Add(1)
	go client.readLoop()

	return client, nil
}

// StreamAudio sends audio data to Deepgram.
func (c *DeepgramClient) StreamAudio(_ context.Context, audio []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return fmt.Errorf("session is closed")
	default:
	}

	return c.conn.WriteMessage(websocket.BinaryMessage, audio)
}

// Results returns the channel of recognition events.
func (c *DeepgramClient) Results() <-chan Result {
	return c.results
}

// Errors returns the channel of session errors.
func (c *DeepgramClient) Errors() <-chan error {
	return c.errors
}

// Close terminates the Deepgram session.
func (c *DeepgramClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		_ = c.conn.WriteMessage(websocket.TextMessage, []byte(`{"type": "CloseStream"}`))
		c.mu.Unlock()

		err = c.conn.Close()

		c.wg.Wait()
		close(c.results)
		close(c.errors)
	})
	return err
}

func (c *DeepgramClient) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			case c.errors <- fmt.Errorf("read error: %w", err):
			default:
			}
			return
		}

		var resp deepgramResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			log.Printf("deepgram: failed to parse response: %v", err)
			continue
		}

		if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
			continue
		}

		alt := resp.Channel.Alternatives[0]
		if alt.Transcript == "" && !resp.IsFinal {
			continue
		}

		select {
		case <-c.done:
			return
		case c.results <- Result{
			Text:       alt.Transcript,
			Confidence: alt.Confidence,
			IsFinal:    resp.IsFinal,
		}:
		}
	}
}

var _ Engine = (*DeepgramClient)(nil)
