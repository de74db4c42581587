package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"carematch/pkg/jwt"
	"carematch/pkg/logger"
)

const (
	ContextParticipantID   = "participant_id"
	ContextParticipantType = "participant_type"
)

// AuthMiddleware validates participant tokens minted by the external identity
// service. The backend never issues tokens itself.
type AuthMiddleware struct {
	tokens *jwt.Manager
	log    logger.Logger
}

func NewAuthMiddleware(tokens *jwt.Manager, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		log:    log,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := m.tokens.Validate(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextParticipantID, claims.ParticipantID)
		c.Set(ContextParticipantType, claims.ParticipantType)
		c.Next()
	}
}

// ValidateToken resolves a raw token for paths that cannot carry an
// Authorization header, such as the websocket upgrade query string.
func (m *AuthMiddleware) ValidateToken(token string) (*jwt.ParticipantClaims, error) {
	return m.tokens.Validate(token)
}
