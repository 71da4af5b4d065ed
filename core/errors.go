package core

import "errors"

var (
	ErrInvalidLifetime    = errors.New("sudo mode lifetime must not be negative")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMemberLocked       = errors.New("member is locked")
	ErrUnsupportedHash    = errors.New("unsupported password hash")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrMemberNotFound     = errors.New("member not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidToken       = errors.New("invalid token")
)
