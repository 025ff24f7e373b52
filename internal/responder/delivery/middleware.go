package delivery

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"google.golang.org/api/idtoken"
)

// TokenValidator checks a Google-signed OIDC token for the audience.
type TokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// PushAuthMiddleware verifies the OIDC token Pub/Sub attaches to push
// requests. An empty audience disables the check.
func PushAuthMiddleware(audience string, validate TokenValidator) gin.HandlerFunc {
	if validate == nil {
		validate = idtoken.Validate
	}
	return func(c *gin.Context) {
		if audience == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		payload, err := validate(c.Request.Context(), parts[1], audience)
		if err != nil {
			log.Printf("[Webhook] Rejected push token: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid push token"})
			c.Abort()
			return
		}

		if email, ok := payload.Claims["email"].(string); ok {
			c.Set("pushIdentity", email)
		}
		c.Next()
	}
}

// RateLimitMiddleware rejects requests beyond the limiter's budget with 429.
func RateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
