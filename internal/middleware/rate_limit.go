package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"carematch/internal/service"
	"carematch/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		log:              log,
	}
}

// Limit enforces a fixed window per participant (falling back to client IP for
// unauthenticated probes) for the named action.
func (m *RateLimitMiddleware) Limit(action string, limit, windowSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := action + ":" + c.GetString(ContextParticipantID)
		if key == action+":" {
			key = action + ":" + c.ClientIP()
		}

		allowed, err := m.rateLimitService.CheckLimit(c.Request.Context(), key, limit, windowSeconds)
		if err != nil {
			m.log.Error("Rate limit check failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			c.Abort()
			return
		}

		if !allowed {
			c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		count, err := m.rateLimitService.Increment(c.Request.Context(), key, windowSeconds)
		if err != nil {
			m.log.Error("Rate limit increment failed", "error", err)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}
