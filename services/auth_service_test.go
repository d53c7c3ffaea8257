package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key"

func organizerHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthService_IssueAndParse(t *testing.T) {
	svc := NewAuthService(testSecret, organizerHash(t, "organizer-pass"), time.Hour)

	token, expiresAt, err := svc.IssueOrganizerToken("organizer-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleOrganizer, claims.Role)
	assert.Equal(t, RoleOrganizer, claims.Subject)
}

func TestAuthService_IssueErrors(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		hash     string
		password string
		wantErr  error
	}{
		{name: "wrong password", secret: testSecret, hash: organizerHash(t, "organizer-pass"), password: "guess", wantErr: ErrInvalidCredentials},
		{name: "no password hash", secret: testSecret, password: "organizer-pass", wantErr: ErrOrganizerAuthMissing},
		{name: "no secret", hash: organizerHash(t, "organizer-pass"), password: "organizer-pass", wantErr: ErrOrganizerAuthMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(tt.secret, tt.hash, 0)
			_, _, err := svc.IssueOrganizerToken(tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthService_ParseRejects(t *testing.T) {
	svc := NewAuthService(testSecret, organizerHash(t, "organizer-pass"), time.Hour)
	token, _, err := svc.IssueOrganizerToken("organizer-pass")
	require.NoError(t, err)

	expired := NewAuthService(testSecret, organizerHash(t, "organizer-pass"), time.Hour).(*authService)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _, err := expired.IssueOrganizerToken("organizer-pass")
	require.NoError(t, err)

	other := NewAuthService("another-secret", organizerHash(t, "organizer-pass"), time.Hour)
	foreignToken, _, err := other.IssueOrganizerToken("organizer-pass")
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, OrganizerClaims{Role: RoleOrganizer}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"tampered": token[:len(token)-2] + "xx",
		"expired":  expiredToken,
		"foreign":  foreignToken,
		"none alg": unsigned,
		"garbage":  "not-a-token",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ParseToken(tok)
			assert.ErrorIs(t, err, ErrAuthenticationFailed)
		})
	}
}
