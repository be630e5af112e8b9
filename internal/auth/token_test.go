package auth

import (
	"testing"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_IssueAndParse(t *testing.T) {
	m := NewTokenManager("secret", time.Hour, "marketplace-service")
	token, err := m.Issue(&domain.User{ID: "u1", Role: domain.RoleAdmin})
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, domain.Caller{UserID: "u1", Role: domain.RoleAdmin}, claims.Caller())
	assert.Equal(t, "marketplace-service", claims.Issuer)
}

func TestTokenManager_RejectsForeignSignature(t *testing.T) {
	token, err := NewTokenManager("other", time.Hour, "x").Issue(&domain.User{ID: "u1", Role: domain.RoleUser})
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour, "x").Parse(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	m := NewTokenManager("secret", time.Minute, "x")
	issuedAt := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issuedAt }
	token, err := m.Issue(&domain.User{ID: "u1", Role: domain.RoleUser})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	_, err := NewTokenManager("secret", time.Hour, "x").Parse("not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
