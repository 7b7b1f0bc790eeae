package handlers

import (
	"net/http"

	"harambee/utils"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports the last dependency snapshot taken by the health monitor.
func HealthHandler(c *gin.Context) {
	status := utils.GetHealthStatus()

	healthy := status.Mongo
	for _, ok := range status.Redis {
		healthy = healthy && ok
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  map[bool]string{true: "ok", false: "degraded"}[healthy],
		"message": "Hi, I'm Harambee",
		"details": status,
	})
}
