package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"paygate/pkg/utils"
)

func JWTAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondError(c, http.StatusUnauthorized, "Authorization header missing or invalid")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := utils.ValidateToken(secret, tokenString)
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("subject", claims.Subject)
		c.Set("claims", claims)
		c.Next()
	}
}

// RequireCapability lets the request through only when the token grants
// capability. Must run after JWTAuthMiddleware.
func RequireCapability(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := c.MustGet("claims").(*utils.Claims)
		if !ok || !claims.Can(capability) {
			utils.RespondError(c, http.StatusForbidden, "Forbidden: missing capability "+capability)
			c.Abort()
			return
		}

		c.Next()
	}
}
