package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/ahwlsqja/chainauth/internal/common/errors"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a 500 response in the standard error
// format and reports it to Sentry. Sentry calls are no-ops without a DSN.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			requestID := GetRequestID(c)
			stack := string(debug.Stack())

			hub := sentry.CurrentHub().Clone()
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetRequest(c.Request)
				scope.SetTag("request_id", requestID)
				scope.SetExtra("panic", fmt.Sprint(rec))
				scope.SetExtra("stack", stack)
				hub.CaptureMessage("panic in request")
			})

			logger.Error("panic recovered",
				zap.String("request_id", requestID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.String("stack", stack),
			)

			RespondError(c, errors.Internal("An unexpected error occurred"))
		}()

		c.Next()
	}
}
