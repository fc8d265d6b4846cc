package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/institute-api/internal/model"
	jwtauth "github.com/jwalitptl/institute-api/pkg/auth"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

const (
	actorKey  = "actor"
	claimsKey = "claims"
)

// SetAuth stores the authenticated caller on the request context.
func SetAuth(c *gin.Context, claims *jwtauth.Claims, actor *model.Actor) {
	c.Set(claimsKey, claims)
	c.Set(actorKey, *actor)
}

// Actor returns the authenticated caller. Routes behind the auth middleware always have one.
func Actor(c *gin.Context) model.Actor {
	if v, ok := c.Get(actorKey); ok {
		return v.(model.Actor)
	}
	return model.Actor{}
}

func Claims(c *gin.Context) *jwtauth.Claims {
	if v, ok := c.Get(claimsKey); ok {
		return v.(*jwtauth.Claims)
	}
	return nil
}

// Fail records err for the error middleware, which writes the response.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// FailBind records a request binding or validation error.
func FailBind(c *gin.Context, err error) {
	_ = c.Error(err).SetType(gin.ErrorTypeBind)
	c.Abort()
}

// ParamID parses the named path parameter as a uuid.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		Fail(c, errors.BadRequest("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// QueryUUID parses an optional uuid query parameter into dst.
func QueryUUID(c *gin.Context, name string, dst *uuid.UUID) bool {
	raw := c.Query(name)
	if raw == "" {
		return true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		Fail(c, errors.BadRequest("invalid %s", name))
		return false
	}
	*dst = id
	return true
}
