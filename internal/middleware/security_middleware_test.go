package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pos-engine/internal/auth"
	"go-pos-engine/internal/config"
	"go-pos-engine/internal/models"
)

func TestAuthMiddlewareExposesClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokenIssuer(config.JWT{Secret: "test-secret", TTL: time.Hour})

	var seen *auth.Claims
	r := gin.New()
	r.GET("/whoami", AuthMiddleware(tokens), func(c *gin.Context) {
		seen = Claims(c)
		c.Status(http.StatusNoContent)
	})

	call := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("Admin", func(t *testing.T) {
		token, err := tokens.GenerateToken(1, models.RoleAdmin)
		require.NoError(t, err)

		require.Equal(t, http.StatusNoContent, call(token))
		assert.Equal(t, uint(1), seen.UserID)
		assert.True(t, seen.IsAdmin())
	})

	t.Run("Staff", func(t *testing.T) {
		token, err := tokens.GenerateToken(2, models.RoleStaff)
		require.NoError(t, err)

		require.Equal(t, http.StatusNoContent, call(token))
		assert.Equal(t, uint(2), seen.UserID)
		assert.False(t, seen.IsAdmin())
	})

	t.Run("Missing token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, call(""))
	})
}

func TestClaimsOutsideAuthMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	claims := Claims(c)

	require.NotNil(t, claims)
	assert.Zero(t, claims.UserID)
	assert.False(t, claims.IsAdmin())
}
