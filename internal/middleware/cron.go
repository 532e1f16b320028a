package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
	"github.com/noah-isme/pawclass-api/pkg/response"
)

// CronSecretHeader carries the scheduler's shared secret.
const CronSecretHeader = "X-Cron-Secret"

type cronSecretVerifier interface {
	CronSecretConfigured() bool
	VerifyCronSecret(presented string) bool
}

// CronSecret guards internal trigger endpoints with a shared secret sent as
// X-Cron-Secret or as a bearer token. With no secret configured every request
// is rejected.
func CronSecret(verifier cronSecretVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !verifier.CronSecretConfigured() {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cron trigger disabled"))
			c.Abort()
			return
		}
		presented := strings.TrimSpace(c.GetHeader(CronSecretHeader))
		if presented == "" {
			presented, _ = bearerToken(c.GetHeader("Authorization"))
		}
		if !verifier.VerifyCronSecret(presented) {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid cron secret"))
			c.Abort()
			return
		}
		c.Next()
	}
}
