package httpapi

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Context key for session data
type contextKey string

const sessionContextKey contextKey = "session"

// JWTClaims represents the claims in the JWT token
type JWTClaims struct {
	jwt.RegisteredClaims
}

// AuthSession represents the authenticated session in request context
type AuthSession struct {
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// hashToken creates a SHA256 hash of the token for storage
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// passwordMatches compares the submitted password against the configured one
// in constant time.
func passwordMatches(configured, submitted string) bool {
	if configured == "" {
		return false
	}
	a := sha256.Sum256([]byte(configured))
	b := sha256.Sum256([]byte(submitted))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// withAuth is middleware that requires valid JWT authentication
func (r *Router) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		// Get token from Authorization header
		authHeader := req.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, `{"error": "missing authorization header"}`, http.StatusUnauthorized)
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			http.Error(w, `{"error": "invalid authorization format"}`, http.StatusUnauthorized)
			return
		}

		sess, err := r.authenticateToken(req.Context(), parts[1])
		if err != nil {
			http.Error(w, fmt.Sprintf(`{"error": %q}`, err.Error()), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(req.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, req.WithContext(ctx))
	}
}

// authenticateToken validates a raw JWT and its session row. The voice
// WebSocket reuses it for query-parameter tokens.
func (r *Router) authenticateToken(ctx context.Context, tokenString string) (*AuthSession, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(r.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	// Check if session is valid (not revoked)
	tokenHash := hashToken(tokenString)
	valid, err := r.store.IsSessionValid(ctx, tokenHash)
	if err != nil || !valid {
		return nil, fmt.Errorf("session expired or revoked")
	}

	sess := &AuthSession{TokenHash: tokenHash}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

// getAuthSession extracts the authenticated session from context
func getAuthSession(ctx context.Context) *AuthSession {
	sess, _ := ctx.Value(sessionContextKey).(*AuthSession)
	return sess
}

// generateJWT creates a new JWT token
func (r *Router) generateJWT() (string, time.Time, error) {
	now := nowUTC()
	expiresAt := now.Add(r.cfg.JWTExpiry)

	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(r.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// handleLogin exchanges the access password for a JWT
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Password string `json:"password"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if r.cfg.AccessPassword == "" {
		r.logger.Printf("auth: no access password configured, login disabled")
		http.Error(w, `{"error": "login not configured"}`, http.StatusServiceUnavailable)
		return
	}

	if !passwordMatches(r.cfg.AccessPassword, body.Password) {
		http.Error(w, `{"error": "wrong password"}`, http.StatusUnauthorized)
		return
	}

	tokenString, expiresAt, err := r.generateJWT()
	if err != nil {
		r.logger.Printf("auth: failed to generate token: %v", err)
		captureError(req, err, "failed to generate JWT")
		http.Error(w, `{"error": "failed to create session"}`, http.StatusInternalServerError)
		return
	}

	if err := r.store.CreateSession(req.Context(), hashToken(tokenString), expiresAt); err != nil {
		r.logger.Printf("auth: failed to persist session: %v", err)
		captureError(req, err, "failed to persist session")
		http.Error(w, `{"error": "failed to create session"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":        tokenString,
		"expires_at":   expiresAt.UTC().Format(time.RFC3339),
		"voice_ws_url": r.voiceEndpoint(),
	})
}

// handleLogout revokes the current session
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	sess := getAuthSession(req.Context())
	if sess == nil {
		http.Error(w, `{"error": "no session"}`, http.StatusUnauthorized)
		return
	}

	if err := r.store.RevokeSession(req.Context(), sess.TokenHash); err != nil {
		r.logger.Printf("auth: failed to revoke session: %v", err)
		captureError(req, err, "failed to revoke session")
		http.Error(w, `{"error": "failed to logout"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
