package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go-pos-engine/internal/auth"
)

const (
	ctxUserID = "userID"
	ctxRole   = "role"
	ctxClaims = "claims"
)

// AuthMiddleware checks if the user has a valid JWT token
func AuthMiddleware(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Format: "Bearer <token>"
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must start with Bearer"})
			return
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// RequireRole is a secondary guard that checks for specific permissions
func RequireRole(allowedRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ctxRole)
		if !exists || role != allowedRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user's id, or 0 outside AuthMiddleware.
func UserID(c *gin.Context) uint {
	id, _ := c.Get(ctxUserID)
	v, _ := id.(uint)
	return v
}

// Claims returns the verified token claims. Outside AuthMiddleware it returns
// empty claims, which carry no capabilities.
func Claims(c *gin.Context) *auth.Claims {
	v, _ := c.Get(ctxClaims)
	if claims, ok := v.(*auth.Claims); ok {
		return claims
	}
	return &auth.Claims{}
}
