package jwtauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRequiresSecret(t *testing.T) {
	p := New()
	err := p.Setup(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	p := New()
	require.NoError(t, p.Setup(context.Background(), map[string]any{"secret": "s3cr3t"}))

	client := p.GetClient().(*Client)
	token, err := client.Issue(map[string]any{"sub": "user-1"})
	require.NoError(t, err)

	claims, err := client.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["sub"])
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	p := New()
	require.NoError(t, p.Setup(context.Background(), map[string]any{"secret": "s3cr3t"}))
	client := p.GetClient().(*Client)

	token, err := client.Issue(map[string]any{"sub": "user-1"})
	require.NoError(t, err)

	_, err = client.Verify(token + "x")
	assert.Error(t, err)
}

func TestGetClientBeforeSetupPanics(t *testing.T) {
	p := New()
	assert.Panics(t, func() { p.GetClient() })
}

func TestHashAndCheckPasswordRoundTrip(t *testing.T) {
	c := &Client{secret: []byte("s"), ttl: time.Hour}
	hashed, err := c.HashPassword("hunter2")
	require.NoError(t, err)
	assert.NoError(t, c.CheckPassword(hashed, "hunter2"))
	assert.Error(t, c.CheckPassword(hashed, "wrong"))
}
