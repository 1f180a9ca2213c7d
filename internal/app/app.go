package app

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asemyonov/jarvis/internal/eventlog"
	"github.com/asemyonov/jarvis/internal/httpapi"
	"github.com/asemyonov/jarvis/internal/store"
)

type App struct {
	cfg        Config
	logger     *log.Logger
	db         *pgxpool.Pool
	store      *store.Store
	eventLog   *eventlog.Logger
	httpClient *http.Client // Shared HTTP client with connection pooling for TTS
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := store.New(db)
	el := eventlog.New(db)

	// Migrations are applied externally by the CI deploy job (docker exec psql).
	// No automatic migration runner at startup.

	// Shared HTTP client with connection pooling for TTS.
	// Keeps TCP connections alive to reduce latency for repeated calls to ElevenLabs.
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10, // ElevenLabs is single host
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		store:      s,
		eventLog:   el,
		httpClient: httpClient,
	}, nil
}

// Store exposes the database layer for background jobs.
func (a *App) Store() *store.Store { return a.store }

// Router builds the HTTP surface and its conversation registry.
func (a *App) Router() (http.Handler, *httpapi.ConversationRegistry) {
	var apnsKey []byte
	if a.cfg.APNsKeyPath != "" {
		key, err := os.ReadFile(a.cfg.APNsKeyPath)
		if err != nil {
			a.logger.Printf("Warning: failed to read APNs key: %v", err)
		} else {
			apnsKey = key
		}
	}

	routerCfg := httpapi.RouterConfig{
		PublicBaseURL:     a.cfg.PublicBaseURL,
		OpenRouterAPIKey:  a.cfg.OpenRouterAPIKey,
		OpenRouterModel:   a.cfg.OpenRouterModel,
		AppReferer:        a.cfg.AppReferer,
		AppTitle:          a.cfg.AppTitle,
		DeepgramAPIKey:    a.cfg.DeepgramAPIKey,
		ElevenLabsAPIKey:  a.cfg.ElevenLabsAPIKey,
		TTSVoiceID:        a.cfg.TTSVoiceID,
		TTSHTTPClient:     a.httpClient,
		SpeechLanguage:    a.cfg.SpeechLanguage,
		AccessPassword:    a.cfg.AccessPassword,
		JWTSecret:         a.cfg.JWTSecret,
		JWTExpiry:         a.cfg.JWTExpiry,
		DiscordWebhookURL: a.cfg.DiscordWebhookURL,
		APNsKeyPEM:        apnsKey,
		APNsKeyID:         a.cfg.APNsKeyID,
		APNsTeamID:        a.cfg.APNsTeamID,
		APNsBundleID:      a.cfg.APNsBundleID,
		APNsProduction:    a.cfg.APNsProduction,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.store, a.eventLog)
}

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
