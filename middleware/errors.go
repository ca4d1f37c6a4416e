package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"xhunt-server/types"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool               `json:"success"`
	Error   string             `json:"error"`
	Details []types.FieldError `json:"details,omitempty"`
}

// StatusFor maps an error kind to its HTTP status. Unknown errors are 500.
func StatusFor(err error) int {
	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError writes err as an ErrorResponse and stops the chain. Internal
// errors are logged in full and hidden from the caller.
func AbortWithError(c *gin.Context, log *zap.Logger, err error) {
	status := StatusFor(err)
	body := ErrorResponse{Success: false, Error: err.Error()}

	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr):
		body.Error = "Validation failed"
		body.Details = verr.Fields
	case status == http.StatusInternalServerError:
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("user_id", c.GetString(UserIDKey)),
			zap.Error(err),
		)
		body.Error = "Internal server error"
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
