package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/asemyonov/jarvis/internal/eventlog"
	"github.com/asemyonov/jarvis/internal/llm"
	"github.com/asemyonov/jarvis/internal/notifications"
	"github.com/asemyonov/jarvis/internal/orchestrator"
	"github.com/asemyonov/jarvis/internal/store"
	"github.com/asemyonov/jarvis/internal/tts"
)

type RouterConfig struct {
	PublicBaseURL string

	// Inference backend
	OpenRouterAPIKey string
	OpenRouterModel  string
	AppReferer       string // HTTP-Referer sent to OpenRouter
	AppTitle         string // X-Title sent to OpenRouter

	// Voice providers
	DeepgramAPIKey   string
	ElevenLabsAPIKey string
	TTSVoiceID       string
	TTSHTTPClient    *http.Client // shared pooled client for synthesis calls
	SpeechLanguage   string       // language tag for capture and local synthesis

	// Authentication
	AccessPassword string
	JWTSecret      string
	JWTExpiry      time.Duration

	// Notifications
	DiscordWebhookURL string

	// APNs Push Notifications
	APNsKeyPEM     []byte
	APNsKeyID      string
	APNsTeamID     string
	APNsBundleID   string
	APNsProduction bool
}

type Router struct {
	cfg           RouterConfig
	logger        *log.Logger
	store         *store.Store
	eventLog      *eventlog.Logger
	discord       *notifications.Discord
	apns          *notifications.APNsClient
	llm           llm.Client
	conversations *ConversationRegistry
	mux           *http.ServeMux
}

// NewRouter builds the HTTP surface. The returned registry participates in
// graceful shutdown: drain it before closing the listener.
func NewRouter(cfg RouterConfig, logger *log.Logger, s *store.Store, eventLog *eventlog.Logger) (http.Handler, *ConversationRegistry) {
	// Initialize APNs client (may be nil if not configured)
	apnsClient, err := notifications.NewAPNsClient(notifications.APNsConfig{
		KeyPEM:     cfg.APNsKeyPEM,
		KeyID:      cfg.APNsKeyID,
		TeamID:     cfg.APNsTeamID,
		BundleID:   cfg.APNsBundleID,
		Production: cfg.APNsProduction,
	}, logger)
	if err != nil {
		logger.Printf("Warning: APNs client initialization failed: %v", err)
	}

	client := llm.NewOpenRouterClient(llm.OpenRouterConfig{
		APIKey:   cfg.OpenRouterAPIKey,
		Model:    cfg.OpenRouterModel,
		Referer:  cfg.AppReferer,
		AppTitle: cfg.AppTitle,
	})

	r := &Router{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		eventLog: eventLog,
		discord:  notifications.NewDiscord(cfg.DiscordWebhookURL, logger),
		apns:     apnsClient,
		llm:      client,
		mux:      http.NewServeMux(),
	}
	r.conversations = NewConversationRegistry(func(projectID string) *orchestrator.Conversation {
		return orchestrator.New(orchestrator.Config{
			ProjectID: projectID,
			Store:     s,
			LLM:       client,
			Events:    eventLog,
			Logger:    logger,
		})
	})

	r.routes()
	return withSentryRecovery(withCORS(r.mux)), r.conversations
}

func (r *Router) routes() {
	// Health check
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)

	// Auth endpoints
	r.mux.HandleFunc("POST /auth/login", r.handleLogin)
	r.mux.HandleFunc("POST /auth/logout", r.withAuth(r.handleLogout))

	// Projects
	r.mux.HandleFunc("GET /api/projects", r.withAuth(r.handleListProjects))
	r.mux.HandleFunc("POST /api/projects", r.withAuth(r.handleCreateProject))
	r.mux.HandleFunc("GET /api/projects/{id}", r.withAuth(r.handleGetProject))
	r.mux.HandleFunc("PATCH /api/projects/{id}", r.withAuth(r.handleUpdateProject))
	r.mux.HandleFunc("DELETE /api/projects/{id}", r.withAuth(r.handleDeleteProject))

	// Conversation
	r.mux.HandleFunc("GET /api/projects/{id}/messages", r.withAuth(r.handleListMessages))
	r.mux.HandleFunc("POST /api/projects/{id}/messages", r.withAuth(r.handleSubmitMessage))

	// Project files
	r.mux.HandleFunc("GET /api/projects/{id}/files", r.withAuth(r.handleListFiles))
	r.mux.HandleFunc("POST /api/projects/{id}/files", r.withAuth(r.handleSaveFile))
	r.mux.HandleFunc("GET /api/files/{id}", r.withAuth(r.handleGetFile))

	// Push notifications
	r.mux.HandleFunc("POST /api/push/register", r.withAuth(r.handlePushRegister))
	r.mux.HandleFunc("POST /api/push/unregister", r.withAuth(r.handlePushUnregister))

	// Voice session (token passed in query, WebSocket clients can't set headers)
	r.mux.HandleFunc("GET /voice", r.handleVoiceWS)
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// speaker builds the playback chain for one voice session: networked
// synthesis into the session's audio sink first, local espeak as fallback.
func (r *Router) speaker(sink tts.AudioSink) *tts.Speaker {
	var strategies []tts.Strategy
	if r.cfg.ElevenLabsAPIKey != "" && sink != nil {
		client := tts.NewElevenLabsClient(tts.ElevenLabsConfig{
			APIKey:     r.cfg.ElevenLabsAPIKey,
			VoiceID:    r.cfg.TTSVoiceID,
			HTTPClient: r.cfg.TTSHTTPClient,
		})
		strategies = append(strategies, tts.NewElevenLabsStrategy(client, sink))
	}
	strategies = append(strategies, tts.NewEspeakEngine(tts.EspeakConfig{
		Language: r.cfg.SpeechLanguage,
	}))
	return tts.NewSpeaker(r.logger, strategies...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func nowUTC() time.Time { return time.Now().UTC() }

// voiceEndpoint returns the public WebSocket URL clients dial for a voice
// session.
func (r *Router) voiceEndpoint() string {
	return wsURLFromPublicBase(r.cfg.PublicBaseURL) + "/voice"
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}

func wsURLFromPublicBase(publicBase string) string {
	// http://x -> ws://x
	// https://x -> wss://x
	if strings.HasPrefix(publicBase, "https://") {
		return "wss://" + strings.TrimPrefix(publicBase, "https://")
	}
	if strings.HasPrefix(publicBase, "http://") {
		return "ws://" + strings.TrimPrefix(publicBase, "http://")
	}
	// assume already host[:port]
	return "wss://" + publicBase
}
