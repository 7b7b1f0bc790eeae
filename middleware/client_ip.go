package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// clientIP is the key the limiters and auth logs use for a caller. Only the first
// X-Forwarded-For hop is considered, and it must parse as an IP so junk header values
// cannot mint fresh limiter buckets.
func clientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}
	if ip := parseIP(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := parseIP(c.RemoteIP()); ip != "" {
		return ip
	}
	return c.Request.RemoteAddr
}

// parseIP returns the canonical form of raw, or "" when raw is not an address.
func parseIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return ""
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}
