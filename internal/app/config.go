package app

import (
	"os"
	"time"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string
	DatabaseURL   string
	LogLevel      string

	// Inference backend
	OpenRouterAPIKey string
	OpenRouterModel  string
	AppReferer       string
	AppTitle         string

	// Voice providers
	DeepgramAPIKey   string
	ElevenLabsAPIKey string
	TTSVoiceID       string // ElevenLabs voice ID
	SpeechLanguage   string

	// Authentication
	AccessPassword string
	JWTSecret      string
	JWTExpiry      time.Duration

	// Observability
	SentryDSN string

	// Notifications
	DiscordWebhookURL string

	// APNs Push Notifications
	APNsKeyPath    string
	APNsKeyID      string
	APNsTeamID     string
	APNsBundleID   string
	APNsProduction bool

	// Background jobs
	SessionCleanupInterval time.Duration
}

func LoadConfigFromEnv() Config {
	jwtExpiry, err := time.ParseDuration(getenv("JWT_EXPIRY", "24h"))
	if err != nil {
		jwtExpiry = 24 * time.Hour
	}
	cleanupInterval, err := time.ParseDuration(getenv("SESSION_CLEANUP_INTERVAL", "1h"))
	if err != nil {
		cleanupInterval = time.Hour
	}

	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		LogLevel:      getenv("LOG_LEVEL", "info"),

		// Inference backend
		OpenRouterAPIKey: getenv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:  getenv("OPENROUTER_MODEL", ""),
		AppReferer:       getenv("APP_REFERER", "https://jarvis.local"),
		AppTitle:         getenv("APP_TITLE", "JARVIS Projects"),

		// Voice providers
		DeepgramAPIKey:   getenv("DEEPGRAM_API_KEY", ""),
		ElevenLabsAPIKey: getenv("ELEVENLABS_API_KEY", ""),
		TTSVoiceID:       getenv("TTS_VOICE_ID", ""),
		SpeechLanguage:   getenv("SPEECH_LANGUAGE", "ru"),

		// Authentication
		AccessPassword: os.Getenv("ACCESS_PASSWORD"), // Required - no fallback for security
		JWTSecret:      os.Getenv("JWT_SECRET"),      // Required - no fallback for security
		JWTExpiry:      jwtExpiry,

		// Observability
		SentryDSN: getenv("SENTRY_DSN", ""),

		// Notifications
		DiscordWebhookURL: getenv("DISCORD_WEBHOOK_URL", ""),

		// APNs Push Notifications
		APNsKeyPath:    getenv("APNS_KEY_PATH", ""),
		APNsKeyID:      getenv("APNS_KEY_ID", ""),
		APNsTeamID:     getenv("APNS_TEAM_ID", ""),
		APNsBundleID:   getenv("APNS_BUNDLE_ID", ""),
		APNsProduction: os.Getenv("APNS_PRODUCTION") == "true",

		// Background jobs
		SessionCleanupInterval: cleanupInterval,
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
