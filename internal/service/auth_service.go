package service

import (
	"crypto/subtle"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/pawclass-api/internal/models"
	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
)

// AuthConfig defines how incoming credentials are verified. Tokens are issued
// by the identity provider; this service only verifies them.
type AuthConfig struct {
	AccessTokenSecret string
	Issuer            string
	CronSecret        string
	CronSecretHash    string
}

// AuthService verifies access tokens and the scheduler's shared secret.
type AuthService struct {
	logger *zap.Logger
	config AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{logger: logger, config: config}
}

// ValidateToken parses and validates an HS256 access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" || claims.Role == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token is missing subject or role")
	}
	return claims, nil
}

// CronSecretConfigured reports whether the sweep trigger can be authenticated.
func (s *AuthService) CronSecretConfigured() bool {
	return s.config.CronSecret != "" || s.config.CronSecretHash != ""
}

// VerifyCronSecret checks a presented shared secret. A configured bcrypt hash
// takes precedence over the plain secret.
func (s *AuthService) VerifyCronSecret(presented string) bool {
	if presented == "" {
		return false
	}
	if s.config.CronSecretHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(s.config.CronSecretHash), []byte(presented)); err != nil {
			s.logger.Debug("cron secret rejected", zap.Error(err))
			return false
		}
		return true
	}
	if s.config.CronSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.config.CronSecret)) == 1
}
