package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/seminar-portal/pkg/response"
)

// RequireAdmin allows only the admin identity through.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := Viewer(c)
		if !ok {
			response.Unauthorized(c, "missing viewer context")
			c.Abort()
			return
		}
		if !v.IsAdmin() {
			response.Forbidden(c, "admin only")
			c.Abort()
			return
		}
		c.Next()
	}
}
