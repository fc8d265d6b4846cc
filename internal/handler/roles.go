package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

// RequireRole rejects authenticated callers whose role is not listed.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor(c)
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		Fail(c, errors.Forbidden("insufficient permissions"))
	}
}

var (
	AdminOnly = RequireRole(model.RoleAdmin)
	Staff     = RequireRole(model.RoleAdmin, model.RoleProfessional)
)
