package ports

import "time"

// SessionTokenizer converts between session IDs and signed cookie values
type SessionTokenizer interface {
	SessionToToken(sessionID string, expiresAt time.Time) (string, error)
	TokenToSession(token string) (string, error)
}
