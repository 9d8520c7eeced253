package matchsvc

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuthenticator(t *testing.T) {
	ctx := context.Background()
	auth := NewJWTAuthenticator("s3cret")

	token, err := auth.IssueToken("u1", time.Hour)
	require.NoError(t, err)

	userID, err := auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	_, err = NewJWTAuthenticator("other").Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	expired, err := auth.IssueToken("u1", -time.Minute)
	require.NoError(t, err)
	_, err = auth.Authenticate(ctx, expired)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestJWTAuthenticatorSubjectAndAlgorithm(t *testing.T) {
	ctx := context.Background()
	auth := NewJWTAuthenticator("s3cret")

	withSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u2"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	userID, err := auth.Authenticate(ctx, withSub)
	require.NoError(t, err)
	assert.Equal(t, "u2", userID)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u2"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.Authenticate(ctx, unsigned)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = auth.Authenticate(ctx, noUser)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestNewAuthenticator(t *testing.T) {
	ctx := context.Background()

	auth, err := NewAuthenticator("", "")
	require.NoError(t, err)
	assert.Nil(t, auth)

	auth, err = NewAuthenticator("tok:u1", "s3cret")
	require.NoError(t, err)
	userID, err := auth.Authenticate(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	token, err := NewJWTAuthenticator("s3cret").IssueToken("u9", time.Hour)
	require.NoError(t, err)
	userID, err = auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u9", userID)

	_, err = auth.Authenticate(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = NewAuthenticator("broken", "")
	assert.Error(t, err)
}
