package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAuth validates the access token and stores the user id in the
// context. WebSocket clients cannot set headers, so a token query parameter
// is accepted as a fallback.
func (m *MiddlewareManager) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("token")
		}

		userID, err := m.auth.ValidateToken(c, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
