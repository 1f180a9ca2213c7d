package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType represents the type of conversation event
type EventType string

const (
	EventSendStarted    EventType = "send_started"
	EventSendRejected   EventType = "send_rejected"
	EventColdStartRetry EventType = "cold_start_retry"
	EventReplyCompleted EventType = "reply_completed"
	EventReplyEmpty     EventType = "reply_empty"
	EventReplyFailed    EventType = "reply_failed"
	EventPersistFailed  EventType = "persist_failed"
	EventVoiceStarted   EventType = "voice_started"
	EventVoiceStopped   EventType = "voice_stopped"
	EventVoiceSegment   EventType = "voice_segment"
	EventPlaybackError  EventType = "playback_error"
)

// Logger provides async event logging to the database
type Logger struct {
	db *pgxpool.Pool
}

// New creates a new event logger
func New(db *pgxpool.Pool) *Logger {
	return &Logger{db: db}
}

// Log writes an event to the database synchronously
func (l *Logger) Log(ctx context.Context, projectID string, eventType EventType, data map[string]any) error {
	if l.db == nil || projectID == "" {
		return nil // Silently skip if no DB or project ID
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		dataJSON = []byte("{}")
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO conversation_events (project_id, event_type, event_data)
		VALUES ($1, $2, $3)
	`, projectID, string(eventType), dataJSON)

	return err
}

// LogAsync logs an event without blocking the caller
func (l *Logger) LogAsync(projectID string, eventType EventType, data map[string]any) {
	if l.db == nil || projectID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Log(ctx, projectID, eventType, data)
	}()
}
