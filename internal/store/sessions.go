package store

import (
	"context"
	"time"
)

// CreateSession records a login session keyed by the SHA256 hash of its JWT,
// so tokens can be revoked server-side.
func (s *Store) CreateSession(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (token_hash, expires_at)
		VALUES ($1, $2)
	`, tokenHash, expiresAt)
	return err
}

// IsSessionValid reports whether a session exists, has not expired, and has
// not been revoked.
func (s *Store) IsSessionValid(ctx context.Context, tokenHash string) (bool, error) {
	var valid bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE token_hash = $1 AND expires_at > NOW() AND revoked_at IS NULL
		)
	`, tokenHash).Scan(&valid)
	return valid, err
}

func (s *Store) RevokeSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE sessions SET revoked_at = NOW()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, tokenHash)
	return err
}

// PurgeExpiredSessions deletes sessions past their expiry. Returns the number
// of rows removed. Run periodically by the cleanup job.
func (s *Store) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM sessions WHERE expires_at < NOW() - INTERVAL '24 hours'
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
