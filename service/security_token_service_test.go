package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityTokenIsStablePerSession(t *testing.T) {
	s := NewSecurityTokenService(true)
	sess := newSession(t)

	first, err := s.Token(context.Background(), sess)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := s.Token(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := s.Token(context.Background(), newSession(t))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestSecurityTokenCheck(t *testing.T) {
	s := NewSecurityTokenService(true)
	sess := newSession(t)

	ok, err := s.Check(context.Background(), sess, "anything")
	require.NoError(t, err)
	assert.False(t, ok, "no token minted yet")

	token, err := s.Token(context.Background(), sess)
	require.NoError(t, err)

	ok, err = s.Check(context.Background(), sess, token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Check(context.Background(), sess, token+"x")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Check(context.Background(), sess, "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Check(context.Background(), brokenSession{}, token)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestDisabledSecurityTokenAcceptsAll(t *testing.T) {
	s := NewSecurityTokenService(false)
	assert.False(t, s.Enabled())

	ok, err := s.Check(context.Background(), newSession(t), "")
	require.NoError(t, err)
	assert.True(t, ok)
}
