package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"quizai/internal/api/handlers"
	"quizai/internal/logger"
	"quizai/internal/models"
	"quizai/internal/ratelimit"
)

// CORSMiddleware restricts cross-origin access to the configured frontend.
func CORSMiddleware() gin.HandlerFunc {
	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:5173"
	}
	return cors.New(cors.Config{
		AllowOrigins:     []string{strings.TrimSuffix(frontendURL, "/")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Cache-Control", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// AccessLog records one audit line per request. Server errors get their own
// event name so alerting can key on it.
func AccessLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.EventAPIAccess
		if status >= http.StatusInternalServerError {
			event = logger.EventAPIError
		}
		log.Security(event,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"durationMs", time.Since(start).Milliseconds(),
			"clientIp", c.ClientIP(),
		)
	}
}

// AuthRequired ensures a valid session exists and puts the internal user ID
// into the request context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		profileValue := session.Get(handlers.ProfileSessionKey)

		profile, ok := profileValue.(handlers.UserProfile)
		if !ok || profile.DatabaseID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
			return
		}

		c.Set("userID", profile.DatabaseID)
		c.Set("userProfile", profile)
		c.Next()
	}
}

// RateLimit enforces the named bucket. The identifier is the authenticated
// user when available, the client IP otherwise. Limiter errors fail open: a
// degraded redis must not take the API down with it.
func RateLimit(bucket string, limiter ratelimit.Limiter, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := c.ClientIP()
		if id, exists := c.Get("userID"); exists {
			if uid, ok := id.(uuid.UUID); ok {
				identifier = uid.String()
			}
		}

		res, err := limiter.Check(c.Request.Context(), bucket, identifier)
		if err != nil {
			log.Warn("rate limit check failed, allowing request", "bucket", bucket, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", res.ResetAt.Format(time.RFC3339))

		if !res.Allowed {
			log.Security(logger.EventRateLimited,
				"bucket", bucket,
				"identifier", identifier,
				"retryAfter", res.RetryAfter,
			)
			c.Header("Retry-After", strconv.Itoa(res.RetryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:      "Too many requests",
				RetryAfter: res.RetryAfter,
			})
			return
		}

		c.Next()
	}
}
