package notifications

import (
	"log"
	"os"
	"testing"
)

func TestTokenPreview(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"short token passes through", "abc", "abc"},
		{"exactly sixteen", "0123456789abcdef", "0123456789abcdef"},
		{"long token truncated", "0123456789abcdef0123", "0123456789abcdef..."},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tokenPreview(tt.token); got != tt.want {
				t.Errorf("tokenPreview(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestNewAPNsClientMissingConfig(t *testing.T) {
	logger := log.New(os.Stderr, "", 0)

	client, err := NewAPNsClient(APNsConfig{}, logger)
	if err != nil {
		t.Fatalf("missing config should disable push, not fail: %v", err)
	}
	if client != nil {
		t.Error("missing config should yield a nil client")
	}

	// A nil client is safe to call.
	if err := client.SendReplyNotification("device-token", ReplyNotification{}); err != nil {
		t.Errorf("nil client SendReplyNotification should be a no-op, got %v", err)
	}
}
