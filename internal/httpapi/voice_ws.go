package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/asemyonov/jarvis/internal/costs"
	"github.com/asemyonov/jarvis/internal/eventlog"
	"github.com/asemyonov/jarvis/internal/orchestrator"
	"github.com/asemyonov/jarvis/internal/session"
	"github.com/asemyonov/jarvis/internal/stt"
	"github.com/asemyonov/jarvis/internal/tts"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClientMessage is a control frame from the client. Audio travels as
// binary frames alongside these.
type wsClientMessage struct {
	Type string `json:"type"` // "start" | "stop" | "submit"
	Text string `json:"text,omitempty"`
}

// wsServerMessage is a server event frame. Synthesized reply audio travels
// back as binary frames.
type wsServerMessage struct {
	Type    string `json:"type"` // "listening" | "idle" | "transcript" | "reply" | "busy" | "error"
	Text    string `json:"text,omitempty"`
	Message any    `json:"message,omitempty"`
}

// voiceSession is one live voice connection: microphone audio in, transcript
// events and synthesized reply audio out.
type voiceSession struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	conv      *orchestrator.Conversation
	capture   *stt.Capture
	speaker   *tts.Speaker
	router    *Router
	projectID string
}

// handleVoiceWS runs a voice session over a WebSocket. The JWT arrives as a
// query parameter because browser WebSocket clients cannot set headers.
func (r *Router) handleVoiceWS(w http.ResponseWriter, req *http.Request) {
	sess, err := r.authenticateToken(req.Context(), req.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	projectID := req.URL.Query().Get("project_id")
	if projectID == "" {
		http.Error(w, `{"error": "project_id is required"}`, http.StatusBadRequest)
		return
	}

	if !r.conversations.Acquire() {
		http.Error(w, `{"error": "shutting down"}`, http.StatusServiceUnavailable)
		return
	}
	defer r.conversations.Release()

	conv := r.conversations.Get(projectID)
	if conv == nil {
		http.Error(w, `{"error": "shutting down"}`, http.StatusServiceUnavailable)
		return
	}
	conv.SetSession(&session.Session{
		ID:        sess.TokenHash,
		IssuedAt:  sess.IssuedAt,
		ExpiresAt: sess.ExpiresAt,
	})

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("voice: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s := &voiceSession{
		conn:      conn,
		conv:      conv,
		router:    r,
		projectID: projectID,
	}
	s.speaker = r.speaker(s)
	s.capture = stt.NewCapture(r.captureFactory(), s.onFinalSegment, r.logger)
	defer s.capture.Stop()
	defer s.speaker.Stop()

	r.eventLog.LogAsync(projectID, eventlog.EventVoiceStarted, nil)
	defer r.eventLog.LogAsync(projectID, eventlog.EventVoiceStopped, nil)

	s.readLoop(req.Context())
}

// captureFactory returns the recognition session factory, or nil when no STT
// provider is configured; the capture then stays permanently idle.
func (r *Router) captureFactory() stt.EngineFactory {
	if r.cfg.DeepgramAPIKey == "" {
		return nil
	}
	return func(ctx context.Context) (stt.Engine, error) {
		client, err := stt.NewDeepgramClient(ctx, stt.DeepgramConfig{
			APIKey:   r.cfg.DeepgramAPIKey,
			Language: r.cfg.SpeechLanguage,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func (s *voiceSession) readLoop(ctx context.Context) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := s.capture.StreamAudio(ctx, data); err != nil {
				s.router.logger.Printf("voice: stream audio failed: %v", err)
			}

		case websocket.TextMessage:
			var msg wsClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.sendEvent(wsServerMessage{Type: "error", Text: "invalid message"})
				continue
			}
			s.handleControl(ctx, msg)
		}
	}
}

func (s *voiceSession) handleControl(ctx context.Context, msg wsClientMessage) {
	switch msg.Type {
	case "start":
		if !s.capture.Supported() {
			s.sendEvent(wsServerMessage{Type: "error", Text: "speech capture not available"})
			return
		}
		if err := s.capture.Start(ctx); err != nil {
			s.router.logger.Printf("voice: capture start failed: %v", err)
			s.sendEvent(wsServerMessage{Type: "error", Text: "could not start listening"})
			return
		}
		s.sendEvent(wsServerMessage{Type: "listening"})

	case "stop":
		s.capture.Stop()
		s.sendEvent(wsServerMessage{Type: "idle"})

	case "submit":
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			text = s.conv.TakeInput()
		}
		if text == "" {
			return
		}
		// The read loop keeps running while the exchange is in flight so
		// stop/start controls stay responsive.
		go s.submit(ctx, text)

	default:
		s.sendEvent(wsServerMessage{Type: "error", Text: "unknown message type"})
	}
}

// onFinalSegment feeds each finalized recognition segment into the pending
// input and mirrors it to the client.
func (s *voiceSession) onFinalSegment(text string) {
	s.conv.AppendInput(text)
	s.router.eventLog.LogAsync(s.projectID, eventlog.EventVoiceSegment, map[string]any{"chars": len(text)})
	s.sendEvent(wsServerMessage{Type: "transcript", Text: text})
}

func (s *voiceSession) submit(ctx context.Context, text string) {
	if !s.conv.Submit(ctx, text) {
		s.sendEvent(wsServerMessage{Type: "busy"})
		return
	}

	turns := s.conv.Turns()
	if len(turns) == 0 {
		return
	}
	reply := turns[len(turns)-1]
	s.sendEvent(wsServerMessage{Type: "reply", Message: reply})
	s.router.notifyReply(s.projectID, reply)
	s.speaker.Speak(ctx, reply.Content)

	cost := costs.CalculateExchangeCosts(costs.ExchangeMetrics{
		LLMInputTokens:  costs.EstimateTokens(text),
		LLMOutputTokens: costs.EstimateTokens(reply.Content),
		TTSCharacters:   len(reply.Content),
	})
	s.router.logger.Printf("voice: exchange for project %s cost ~%d cents (llm=%d tts=%d)",
		s.projectID, cost.TotalCostCents, cost.LLMCostCents, cost.TTSCostCents)
}

func (s *voiceSession) sendEvent(msg wsServerMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		s.router.logger.Printf("voice: write failed: %v", err)
	}
}

// Play streams synthesized audio to the client as a binary frame,
// implementing tts.AudioSink.
func (s *voiceSession) Play(_ context.Context, audio []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, audio)
}

var _ tts.AudioSink = (*voiceSession)(nil)
