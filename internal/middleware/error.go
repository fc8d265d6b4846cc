package middleware

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/institute-api/internal/handler"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

// ErrorHandler writes the response for the last error a handler recorded with c.Error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		var tooLarge *http.MaxBytesError
		if stderrors.As(last.Err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, handler.NewErrorResponse("request body too large"))
			return
		}
		if last.IsType(gin.ErrorTypeBind) {
			c.JSON(http.StatusBadRequest, bindResponse(last.Err))
			return
		}

		status := errors.HTTPStatus(last.Err)
		if status >= http.StatusInternalServerError {
			zerolog.Ctx(c.Request.Context()).Error().
				Err(last.Err).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("request failed")
		}
		c.JSON(status, handler.NewErrorResponse(errors.PublicMessage(last.Err)))
	}
}

func bindResponse(err error) *handler.Response {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		return handler.NewValidationResponse(fieldErrors(verrs))
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntaxErr):
		return handler.NewErrorResponse("malformed JSON body")
	case stderrors.As(err, &typeErr):
		return handler.NewValidationResponse([]handler.FieldError{{
			Field:   typeErr.Field,
			Message: "must be a " + typeErr.Type.String(),
		}})
	}
	return handler.NewErrorResponse("invalid request: " + err.Error())
}
