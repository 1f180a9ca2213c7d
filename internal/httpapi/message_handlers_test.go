package httpapi

import "testing"

func TestTokenPreview(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"shorter than the cutoff", "abc", "abc"},
		{"exactly the cutoff", "12345678", "12345678"},
		{"longer gets truncated", "123456789abcdef", "12345678..."},
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
