package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/institute-api/internal/handler"
	"github.com/jwalitptl/institute-api/internal/service/auth"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

type AuthMiddleware struct {
	authService auth.AuthService
	cookieName  string
}

func NewAuthMiddleware(authService auth.AuthService, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		cookieName:  cookieName,
	}
}

// Authenticate resolves the caller from a Bearer token, falling back to the session cookie.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := m.token(c)
		if err != nil {
			handler.Fail(c, err)
			return
		}

		claims, actor, err := m.authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			handler.Fail(c, err)
			return
		}

		handler.SetAuth(c, claims, actor)
		c.Next()
	}
}

func (m *AuthMiddleware) token(c *gin.Context) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", errors.Unauthorized("invalid authorization format")
		}
		return parts[1], nil
	}

	if m.cookieName != "" {
		if cookie, err := c.Cookie(m.cookieName); err == nil && cookie != "" {
			return cookie, nil
		}
	}
	return "", errors.Unauthorized("authentication required")
}
