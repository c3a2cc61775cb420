package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into a logged 500. A panic raised before the
// publisher was reached means no operation left the gateway; one raised after
// leaves the operation in flight, so clients retry by polling its receipt
// rather than resubmitting.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			// net/http aborts the connection silently for this sentinel
			if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(r)
			}

			correlationID := GetCorrelationID(c)
			attrs := []any{
				"error", r,
				"stack", string(debug.Stack()),
				"method", c.Request.Method,
				"route", c.FullPath(),
				"path", c.Request.URL.Path,
				"correlation_id", correlationID,
			}
			if caller, ok := GetCaller(c); ok {
				attrs = append(attrs, "caller", caller.String())
			}
			logger.Error("Panic recovered", attrs...)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			response := gin.H{
				"error": gin.H{
					"code":    "INTERNAL_SERVER_ERROR",
					"message": "An internal server error occurred",
				},
			}
			if correlationID != "" {
				response["correlation_id"] = correlationID
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, response)
		}()

		c.Next()
	}
}
