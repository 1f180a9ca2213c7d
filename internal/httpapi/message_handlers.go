package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/asemyonov/jarvis/internal/notifications"
	"github.com/asemyonov/jarvis/internal/session"
	"github.com/asemyonov/jarvis/internal/store"
)

// replyPreviewLimit caps the reply text carried in a push notification.
const replyPreviewLimit = 120

// tokenPreview shortens a device token for logging. Registration only
// requires a non-empty token, so the length cannot be assumed.
func tokenPreview(token string) string {
	if len(token) > 8 {
		return token[:8] + "..."
	}
	return token
}

// handleListMessages returns a project's conversation, oldest first. While a
// send is in flight the in-memory sequence is served as-is; reloading from
// the store mid-send would drop the optimistic turns.
func (r *Router) handleListMessages(w http.ResponseWriter, req *http.Request) {
	conv := r.conversations.Get(req.PathValue("id"))
	if conv == nil {
		http.Error(w, `{"error": "shutting down"}`, http.StatusServiceUnavailable)
		return
	}

	if !conv.Busy() {
		if err := conv.LoadHistory(req.Context()); err != nil {
			r.logger.Printf("messages: load history failed: %v", err)
			captureError(req, err, "failed to load history")
			http.Error(w, `{"error": "failed to load messages"}`, http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": conv.Turns(),
		"busy":     conv.Busy(),
	})
}

// handleSubmitMessage runs one exchange: user text in, assistant reply (or
// error turn) out. A send already in flight yields 409; the client is
// expected to disable its input while waiting.
func (r *Router) handleSubmitMessage(w http.ResponseWriter, req *http.Request) {
	projectID := req.PathValue("id")
	conv := r.conversations.Get(projectID)
	if conv == nil {
		http.Error(w, `{"error": "shutting down"}`, http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		http.Error(w, `{"error": "text is required"}`, http.StatusBadRequest)
		return
	}

	if sess := getAuthSession(req.Context()); sess != nil {
		conv.SetSession(&session.Session{
			ID:        sess.TokenHash,
			IssuedAt:  sess.IssuedAt,
			ExpiresAt: sess.ExpiresAt,
		})
	}

	if !conv.Submit(req.Context(), body.Text) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "send in flight"})
		return
	}

	turns := conv.Turns()
	var reply *store.Message
	if len(turns) > 0 {
		reply = &turns[len(turns)-1]
	}

	if reply != nil {
		r.notifyReply(projectID, *reply)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": turns,
		"reply":    reply,
	})
}

// notifyReply fans the finished exchange out to the side channels: push
// notifications for every registered device, Discord for hard failures.
func (r *Router) notifyReply(projectID string, reply store.Message) {
	failed := strings.HasPrefix(reply.Content, "❌")
	if failed && r.discord.Enabled() {
		r.discord.NotifyBackendFailure(context.Background(), projectID, reply.Content)
	}

	if r.apns == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tokens, err := r.store.ListPushTokens(ctx)
		if err != nil {
			r.logger.Printf("push: failed to list tokens: %v", err)
			return
		}

		project, err := r.store.GetProject(ctx, projectID)
		name := ""
		if err == nil {
			name = project.Name
		}

		preview := reply.Content
		if runes := []rune(preview); len(runes) > replyPreviewLimit {
			preview = string(runes[:replyPreviewLimit]) + "…"
		}

		for _, t := range tokens {
			if err := r.apns.SendReplyNotification(t.Token, notifications.ReplyNotification{
				ProjectID:   projectID,
				ProjectName: name,
				Preview:     preview,
				Failed:      failed,
			}); err != nil {
				r.logger.Printf("push: notify %s failed: %v", tokenPreview(t.Token), err)
			}
		}
	}()
}
