package handlers

import (
	"harambee/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// getLogger retrieves a Zap logger from the Gin context or falls back to the global one.
func getLogger(c *gin.Context) *zap.Logger {
	if l, exists := c.Get(utils.ContextLogger); exists {
		if logger, ok := l.(*zap.Logger); ok {
			return logger
		}
	}
	return utils.GetLogger()
}

// memberID is set by the member auth middleware.
func memberID(c *gin.Context) string {
	return c.GetString(utils.ContextMemberID)
}
