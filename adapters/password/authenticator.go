package password

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"
	"github.com/layer-3/sudomode/core"
	"github.com/layer-3/sudomode/ports"
	"golang.org/x/crypto/bcrypt"
)

// Authenticator verifies an email and password against the member store
type Authenticator struct {
	members ports.MemberStore
}

var _ ports.Authenticator = (*Authenticator)(nil)

// NewAuthenticator creates a password authenticator
func NewAuthenticator(members ports.MemberStore) *Authenticator {
	return &Authenticator{members: members}
}

// Authenticate returns the member whose email and password match creds
func (a *Authenticator) Authenticate(ctx context.Context, creds core.Credentials) (*core.Member, error) {
	if strings.TrimSpace(creds.Identifier) == "" || creds.Password == "" {
		return nil, core.ErrInvalidCredentials
	}

	member, err := a.members.FindByEmail(ctx, creds.Identifier)
	if err != nil {
		if errors.Is(err, core.ErrMemberNotFound) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find member: %w", err)
	}

	if err := Verify(member.PasswordHash, creds.Password); err != nil {
		return nil, err
	}
	return member, nil
}

// Verify checks password against an encoded hash.
// Supported: bcrypt ($2a$, $2b$, $2y$), sha512-crypt ($6$), sha256-crypt ($5$), md5-crypt ($1$).
func Verify(hash, password string) error {
	if hash == "" || strings.HasPrefix(hash, "!") || strings.HasPrefix(hash, "*") {
		return core.ErrMemberLocked
	}

	if strings.HasPrefix(hash, "$2") {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return core.ErrInvalidCredentials
		default:
			return fmt.Errorf("%w: %v", core.ErrUnsupportedHash, err)
		}
	}

	c := crypterFor(hash)
	if c == nil {
		return core.ErrUnsupportedHash
	}
	if err := c.Verify(hash, []byte(password)); err != nil {
		return core.ErrInvalidCredentials
	}
	return nil
}

// Hash encodes password with bcrypt at the default cost
func Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func crypterFor(hash string) crypt.Crypter {
	switch {
	case strings.HasPrefix(hash, "$6$"):
		return sha512_crypt.New()
	case strings.HasPrefix(hash, "$5$"):
		return sha256_crypt.New()
	case strings.HasPrefix(hash, "$1$"):
		return md5_crypt.New()
	}
	return nil
}
