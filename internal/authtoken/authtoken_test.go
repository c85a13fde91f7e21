package authtoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
)

const alice domain.Principal = "0x00000000000000000000000000000000000000aa"

func TestIssueAndValidate(t *testing.T) {
	svc := New("test-signing-key", "selns", "selns-api")

	token, err := svc.Issue(alice, time.Hour)
	require.NoError(t, err)

	p, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, alice, p)
}

func TestValidateRejections(t *testing.T) {
	svc := New("test-signing-key", "selns", "selns-api")

	t.Run("expired", func(t *testing.T) {
		token, err := svc.Issue(alice, -time.Minute)
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("wrong key", func(t *testing.T) {
		other := New("other-signing-key", "selns", "selns-api")
		token, err := other.Issue(alice, time.Hour)
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("not-a-jwt")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong signing method", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: alice.String()})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("subject not a principal", func(t *testing.T) {
		claims := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		token, err := claims.SignedString([]byte("test-signing-key"))
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
