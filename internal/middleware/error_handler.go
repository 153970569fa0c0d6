package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/flexpulse/internal/domain/dto"
	"github.com/guttosm/flexpulse/internal/logger"
)

// ErrorHandler renders errors attached to the context with c.Error as a
// standardized JSON body, when the handler did not write a response itself.
//
// Behavior:
//   - Runs after the handler chain.
//   - Uses the last attached error.
//   - Keeps a status already set by the handler when it is >= 400, otherwise 500.
func ErrorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}

	err := c.Errors.Last()
	status := c.Writer.Status()
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}

	rid, _ := c.Get(RequestIDKey)
	logger.L().Error().
		Str("request_id", toString(rid)).
		Str("path", c.Request.URL.Path).
		Int("status", status).
		Err(err.Err).
		Msg("request failed")

	c.JSON(status, dto.NewErrorResponse(http.StatusText(status), err.Err))
}

// AbortWithError stops the chain and writes a dto.ErrorResponse.
//
// Parameters:
//   - c: gin context.
//   - status: HTTP status code.
//   - message: human readable summary.
//   - err: underlying cause; may be nil.
func AbortWithError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(message, err))
}
