package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"blackfong-core/app/domains"
	"blackfong-core/app/dto"
	"blackfong-core/app/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// TokenHeader carries the static operator token
	TokenHeader = "X-Blackfong-Token"

	requesterKey = "blackfong_requester"
)

// SetRequester stores the caller identity in the gin context
func SetRequester(c *gin.Context, r domains.Requester) {
	c.Set(requesterKey, r)
}

// GetRequester returns the caller identity, or domains.Anonymous when the auth
// middleware did not run
func GetRequester(c *gin.Context) domains.Requester {
	if v, exists := c.Get(requesterKey); exists {
		if r, ok := v.(domains.Requester); ok {
			return r
		}
	}
	return domains.Anonymous
}

// AuthMiddleware derives the requester. With neither a static token nor a
// JWT service configured every request is let through as anonymous@<ip>.
// Otherwise the request needs a matching X-Blackfong-Token header or a
// Bearer JWT signed with the configured secret.
func AuthMiddleware(token string, jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" && jwtService == nil {
			SetRequester(c, domains.Requester(string(domains.Anonymous)+"@"+c.ClientIP()))
			c.Next()
			return
		}

		if token != "" {
			if got := c.GetHeader(TokenHeader); got != "" &&
				subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1 {
				SetRequester(c, domains.Requester("operator"))
				c.Next()
				return
			}
		}

		if jwtService != nil {
			if bearer := extractBearerToken(c); bearer != "" {
				if subject, err := jwtService.ValidateToken(bearer); err == nil {
					SetRequester(c, domains.Requester(subject))
					c.Next()
					return
				}
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "missing or invalid token"})
	}
}

// RequireOperator rejects callers holding a node token
func RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, isNode := GetRequester(c).NodeName(); isNode {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{Error: "node tokens may only register and heartbeat"})
			return
		}
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// RateLimit answers 429 once limiter runs out of tokens. A nil limiter
// disables limiting.
func RateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request through zap
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}
