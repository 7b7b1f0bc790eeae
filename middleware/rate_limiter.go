package middleware

import (
	"net/http"
	"sync"
	"time"

	"harambee/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterStore holds a map of IP addresses to their rate limiters.
type rateLimiterStore struct {
	limiters map[string]*rate.Limiter
	perMin   int
	mu       sync.Mutex
}

func newRateLimiterStore(perMin int) *rateLimiterStore {
	if perMin <= 0 {
		perMin = 60
	}
	return &rateLimiterStore{
		limiters: make(map[string]*rate.Limiter),
		perMin:   perMin,
	}
}

// getLimiter returns the rate limiter for a given IP, creating one if it doesn't exist.
func (s *rateLimiterStore) getLimiter(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.perMin)), s.perMin)
		s.limiters[ip] = limiter
	}
	return limiter
}

func limitBy(store *rateLimiterStore, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := clientIP(c)
		if !store.getLimiter(ip).Allow() {
			zap.L().Warn("Rate limit exceeded", zap.String("ip", ip), zap.String("scope", scope))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware limits requests per IP address across the API.
func RateLimitMiddleware() gin.HandlerFunc {
	return limitBy(newRateLimiterStore(config.AppConfig.MaxRequestsPerMin), "global")
}

// PublicRateLimitMiddleware is the stricter limit for unauthenticated recharge link payers.
func PublicRateLimitMiddleware() gin.HandlerFunc {
	return limitBy(newRateLimiterStore(config.AppConfig.PublicRequestsPerMin), "public")
}
