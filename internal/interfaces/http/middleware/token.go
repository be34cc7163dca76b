package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kpidash/backend/internal/infrastructure/upstream"
)

// ForwardToken copies the caller's Authorization header into the request
// context so upstream calls are made on the caller's behalf. Requests
// without the header fall back to the configured upstream token.
func ForwardToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth := c.GetHeader("Authorization"); auth != "" {
			ctx := upstream.ContextWithToken(c.Request.Context(), auth)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
