// Package session carries the authenticated session identity through the
// application instead of an ambient global flag. Handlers build a Session
// from the verified JWT and pass it to the components acting on its behalf.
package session

import "time"

// Session identifies one authenticated login.
type Session struct {
	ID        string    // session identifier (hash of the issued token)
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Valid reports whether the session exists and has not expired.
func (s *Session) Valid() bool {
	if s == nil || s.ID == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || time.Now().Before(s.ExpiresAt)
}
