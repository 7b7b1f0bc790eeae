package middleware

import (
	"net/http"
	"strings"

	"harambee/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JWTAuthMemberMiddleware authenticates a member bearer token and stores the member id in the context.
func JWTAuthMemberMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Insufficient authorization",
				"code":  0,
			})
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		memberID, err := utils.ExtractIDFromToken(tokenString)
		if err != nil || memberID == "" {
			utils.GetLogger().Debug("member token rejected", zap.String("ip", clientIP(c)), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Insufficient authorization",
				"code":  0,
			})
			return
		}

		c.Set(utils.ContextMemberID, memberID)
		c.Next()
	}
}
