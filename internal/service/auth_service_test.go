package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/pawclass-api/internal/models"
)

func signToken(t *testing.T, secret string, claims *models.JWTClaims, method jwt.SigningMethod) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func testClaims(expiresIn time.Duration) *models.JWTClaims {
	return &models.JWTClaims{
		UserID: "stu-1",
		Role:   models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "pawclass",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "pawclass"})

	claims, err := svc.ValidateToken(signToken(t, "secret", testClaims(time.Hour), jwt.SigningMethodHS256))
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceRejectsInvalidTokens(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "pawclass"})

	_, err := svc.ValidateToken(signToken(t, "other", testClaims(time.Hour), jwt.SigningMethodHS256))
	assert.Error(t, err)

	_, err = svc.ValidateToken(signToken(t, "secret", testClaims(-time.Minute), jwt.SigningMethodHS256))
	assert.Error(t, err)

	_, err = svc.ValidateToken(signToken(t, "secret", testClaims(time.Hour), jwt.SigningMethodHS384))
	assert.Error(t, err)

	wrongIssuer := testClaims(time.Hour)
	wrongIssuer.Issuer = "elsewhere"
	_, err = svc.ValidateToken(signToken(t, "secret", wrongIssuer, jwt.SigningMethodHS256))
	assert.Error(t, err)

	noRole := testClaims(time.Hour)
	noRole.Role = ""
	_, err = svc.ValidateToken(signToken(t, "secret", noRole, jwt.SigningMethodHS256))
	assert.Error(t, err)
}

func TestAuthServiceSubjectFallback(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret"})
	claims := testClaims(time.Hour)
	claims.UserID = ""
	claims.Subject = "stu-9"

	parsed, err := svc.ValidateToken(signToken(t, "secret", claims, jwt.SigningMethodHS256))
	require.NoError(t, err)
	assert.Equal(t, "stu-9", parsed.UserID)
}

func TestAuthServiceVerifyCronSecret(t *testing.T) {
	plain := NewAuthService(nil, AuthConfig{CronSecret: "tick"})
	assert.True(t, plain.CronSecretConfigured())
	assert.True(t, plain.VerifyCronSecret("tick"))
	assert.False(t, plain.VerifyCronSecret("tock"))
	assert.False(t, plain.VerifyCronSecret(""))

	hash, err := bcrypt.GenerateFromPassword([]byte("tick"), bcrypt.MinCost)
	require.NoError(t, err)
	hashed := NewAuthService(nil, AuthConfig{CronSecret: "ignored", CronSecretHash: string(hash)})
	assert.True(t, hashed.VerifyCronSecret("tick"))
	assert.False(t, hashed.VerifyCronSecret("ignored"))

	unset := NewAuthService(nil, AuthConfig{})
	assert.False(t, unset.CronSecretConfigured())
	assert.False(t, unset.VerifyCronSecret("anything"))
}
