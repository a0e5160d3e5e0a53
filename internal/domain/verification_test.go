package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionKey_Layout(t *testing.T) {
	key := SessionKey(PurposeFinishRegistration, "a@b.com", "123456")
	assert.Equal(t, "verification:finish_registration:a@b.com:123456", key)
}

func TestSessionKey_PurposeScopesCollisions(t *testing.T) {
	a := SessionKey(PurposeFinishRegistration, "a@b.com", "123456")
	b := SessionKey(PurposeForgotPassword, "a@b.com", "123456")
	assert.NotEqual(t, a, b)
}

func TestDraftKey_Layout(t *testing.T) {
	assert.Equal(t, "registration:a@b.com:123456", DraftKey("a@b.com", "123456"))
}

func TestVerificationSession_Expired(t *testing.T) {
	now := time.Now()
	s := &VerificationSession{ExpiresAt: now.Add(10 * time.Minute).Unix()}
	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(11*time.Minute)))
	// Boundary: a session is expired at exactly ExpiresAt.
	s.ExpiresAt = now.Unix()
	assert.True(t, s.Expired(now))
}

func TestRegistrationDraft_Expired(t *testing.T) {
	now := time.Now()
	d := &RegistrationDraft{ExpiresAt: now.Add(-time.Second).Unix()}
	assert.True(t, d.Expired(now))
}
