package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("pass1")
	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "pass1", hash)

	assert.True(t, CheckPassword("pass1", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestIssueAndVerify(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.Issue(Claims{UserID: 7, Name: "Juan Dela Cruz", Role: RoleDriver})
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "Juan Dela Cruz", claims.Name)
	assert.Equal(t, RoleDriver, claims.Role)
}

func TestVerifyRejectsBadToken(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	_, err := svc.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenService("other-secret", time.Hour)
	token, _ := other.Issue(Claims{UserID: 1, Role: RolePassenger})
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	svc.expiry = -time.Minute

	token, err := svc.Issue(Claims{UserID: 1, Role: RolePassenger})
	assert.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestBearerPrefixStripped(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	token, _ := svc.Issue(Claims{UserID: 3, Phone: "09171234567", Role: RolePassenger})

	claims, err := svc.Verify("Bearer " + token)
	assert.NoError(t, err)
	assert.Equal(t, "09171234567", claims.Phone)
}
