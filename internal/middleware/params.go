package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appErrors "github.com/noah-isme/pawclass-api/pkg/errors"
	"github.com/noah-isme/pawclass-api/pkg/response"
)

// UUIDParams rejects requests whose named path params are present but not
// UUIDs. No record can carry such an id, so they answer NOT_FOUND.
func UUIDParams(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range names {
			value := c.Param(name)
			if value == "" {
				continue
			}
			if _, err := uuid.Parse(value); err != nil {
				response.Error(c, appErrors.ErrNotFound)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
