package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/admin-panel/database"
)

type memUsers map[string]*database.User

func (m memUsers) GetUserByUsername(_ context.Context, username string) (*database.User, error) {
	if u, ok := m[username]; ok {
		return u, nil
	}
	return nil, database.ErrUserNotFound
}

func newTestAuth(t *testing.T, ttl time.Duration) *AuthService {
	t.Helper()
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	auth, err := NewAuthService(memUsers{"admin": {ID: 7, Username: "admin", PasswordHash: hash}}, "test-secret", ttl)
	require.NoError(t, err)
	return auth
}

func TestLogin(t *testing.T) {
	auth := newTestAuth(t, time.Hour)
	ctx := context.Background()

	user, token, err := auth.Login(ctx, " admin ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)

	sess, err := auth.VerifyJWT(token)
	require.NoError(t, err)
	assert.Equal(t, Session{UserID: 7, Username: "admin"}, sess)

	for name, creds := range map[string][2]string{
		"wrong password": {"admin", "nope"},
		"unknown user":   {"root", "s3cret"},
		"empty":          {"", ""},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := auth.Login(ctx, creds[0], creds[1])
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestVerifyJWTRejects(t *testing.T) {
	auth := newTestAuth(t, time.Hour)

	expired := newTestAuth(t, -time.Minute)
	token, err := expired.CreateJWT(Session{UserID: 1, Username: "admin"})
	require.NoError(t, err)
	_, err = auth.VerifyJWT(token)
	assert.Error(t, err)

	other, err := NewAuthService(memUsers{}, "", time.Hour)
	require.NoError(t, err)
	token, err = other.CreateJWT(Session{UserID: 1, Username: "admin"})
	require.NoError(t, err)
	_, err = auth.VerifyJWT(token)
	assert.Error(t, err, "tokens signed with another secret must fail")

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"uid": 1, "exp": time.Now().Add(time.Hour).Unix()})
	token, err = noUser.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = auth.VerifyJWT(token)
	assert.Error(t, err)

	_, err = auth.VerifyJWT("garbage")
	assert.Error(t, err)
}

func TestGenerateTempPassword(t *testing.T) {
	a, err := GenerateTempPassword()
	require.NoError(t, err)
	b, err := GenerateTempPassword()
	require.NoError(t, err)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
