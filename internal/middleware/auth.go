package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"course-chat-service/internal/auth"
)

// AuthMiddleware validates the Authorization header and stores the
// authenticated identity on the request context.
func AuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"kind": "authentication", "error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"kind": "authentication", "error": "invalid authorization header"})
			return
		}

		userID, accountType, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"kind": "authentication", "error": "invalid token"})
			return
		}

		c.Set("userID", userID)
		c.Set("accountType", accountType)
		c.Next()
	}
}
