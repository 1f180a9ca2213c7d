package app

import (
	"os"
	"testing"
	"time"
)

func TestGetenv(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		defValue string
		want     string
	}{
		{
			name:     "env set",
			envKey:   "TEST_ENV_VAR",
			envValue: "custom_value",
			defValue: "default",
			want:     "custom_value",
		},
		{
			name:     "env not set",
			envKey:   "TEST_ENV_VAR_NOTSET",
			envValue: "",
			defValue: "default",
			want:     "default",
		},
		{
			name:     "empty default",
			envKey:   "TEST_ENV_VAR_EMPTY",
			envValue: "",
			defValue: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.envKey, tt.envValue)
				defer os.Unsetenv(tt.envKey)
			}

			got := getenv(tt.envKey, tt.defValue)
			if got != tt.want {
				t.Errorf("getenv(%q, %q) = %q, want %q", tt.envKey, tt.defValue, got, tt.want)
			}
		})
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	// Clear any existing env vars that might interfere
	keysToClean := []string{
		"HTTP_ADDR", "PUBLIC_BASE_URL", "DATABASE_URL", "LOG_LEVEL",
		"OPENROUTER_MODEL", "SPEECH_LANGUAGE", "JWT_EXPIRY",
		"SESSION_CLEANUP_INTERVAL", "APP_TITLE",
	}
	for _, key := range keysToClean {
		os.Unsetenv(key)
	}

	cfg := LoadConfigFromEnv()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}

	if cfg.PublicBaseURL != "http://localhost:8080" {
		t.Errorf("PublicBaseURL = %q, want %q", cfg.PublicBaseURL, "http://localhost:8080")
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}

	if cfg.SpeechLanguage != "ru" {
		t.Errorf("SpeechLanguage = %q, want %q", cfg.SpeechLanguage, "ru")
	}

	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v, want 24h", cfg.JWTExpiry)
	}

	if cfg.SessionCleanupInterval != time.Hour {
		t.Errorf("SessionCleanupInterval = %v, want 1h", cfg.SessionCleanupInterval)
	}

	if cfg.AppTitle != "JARVIS Projects" {
		t.Errorf("AppTitle = %q, want %q", cfg.AppTitle, "JARVIS Projects")
	}
}

func TestLoadConfigFromEnvCustomValues(t *testing.T) {
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("PUBLIC_BASE_URL", "https://api.example.com")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("OPENROUTER_MODEL", "qwen/qwen-max")
	os.Setenv("SPEECH_LANGUAGE", "en")
	os.Setenv("JWT_EXPIRY", "72h")

	defer func() {
		os.Unsetenv("HTTP_ADDR")
		os.Unsetenv("PUBLIC_BASE_URL")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("OPENROUTER_MODEL")
		os.Unsetenv("SPEECH_LANGUAGE")
		os.Unsetenv("JWT_EXPIRY")
	}()

	cfg := LoadConfigFromEnv()

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}

	if cfg.PublicBaseURL != "https://api.example.com" {
		t.Errorf("PublicBaseURL = %q, want %q", cfg.PublicBaseURL, "https://api.example.com")
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}

	if cfg.OpenRouterModel != "qwen/qwen-max" {
		t.Errorf("OpenRouterModel = %q, want %q", cfg.OpenRouterModel, "qwen/qwen-max")
	}

	if cfg.SpeechLanguage != "en" {
		t.Errorf("SpeechLanguage = %q, want %q", cfg.SpeechLanguage, "en")
	}

	if cfg.JWTExpiry != 72*time.Hour {
		t.Errorf("JWTExpiry = %v, want 72h", cfg.JWTExpiry)
	}
}

func TestLoadConfigFromEnvInvalidDurations(t *testing.T) {
	os.Setenv("JWT_EXPIRY", "not-a-duration")
	os.Setenv("SESSION_CLEANUP_INTERVAL", "soon")
	defer func() {
		os.Unsetenv("JWT_EXPIRY")
		os.Unsetenv("SESSION_CLEANUP_INTERVAL")
	}()

	cfg := LoadConfigFromEnv()

	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v, want the 24h fallback", cfg.JWTExpiry)
	}
	if cfg.SessionCleanupInterval != time.Hour {
		t.Errorf("SessionCleanupInterval = %v, want the 1h fallback", cfg.SessionCleanupInterval)
	}
}
