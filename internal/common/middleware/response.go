package middleware

import (
	"net/http"
	"strconv"

	"github.com/ahwlsqja/chainauth/internal/common/errors"
	"github.com/gin-gonic/gin"
)

// ErrorCodeKey is the gin context key holding the code of the error response
const ErrorCodeKey = "error_code"

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains error details
type ErrorBody struct {
	Code      string         `json:"code" example:"CHALLENGE_NOT_FOUND"`
	Message   string         `json:"message" example:"No challenge issued for this identity"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// SuccessResponse represents the standard success response format
type SuccessResponse struct {
	Data any `json:"data"`
}

// RespondSuccess sends a successful JSON response
func RespondSuccess(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, SuccessResponse{Data: data})
}

// RespondError sends an error JSON response.
// Any *errors.AppError in the chain is rendered as is; everything else
// becomes INTERNAL_ERROR without leaking the cause.
func RespondError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Internal("An unexpected error occurred").WithError(err)
	}
	if appErr.Err != nil {
		_ = c.Error(appErr.Err)
	}
	if appErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.FormatInt(int64(appErr.RetryAfter.Seconds()), 10))
	}
	c.Set(ErrorCodeKey, appErr.Code)

	c.AbortWithStatusJSON(appErr.StatusCode, ErrorResponse{
		Error: ErrorBody{
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: GetRequestID(c),
			Details:   appErr.Details,
		},
	})
}

// MethodNotAllowed answers requests whose route exists under another method
func MethodNotAllowed(c *gin.Context) {
	RespondError(c, errors.MethodNotAllowed(c.Request.Method))
}

// NotFound answers requests with no matching route
func NotFound(c *gin.Context) {
	RespondError(c, &errors.AppError{
		Code:       "NOT_FOUND",
		Message:    "Route not found",
		StatusCode: http.StatusNotFound,
	})
}

// RespondOK sends a 200 OK response
func RespondOK(c *gin.Context, data any) {
	RespondSuccess(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response
func RespondCreated(c *gin.Context, data any) {
	RespondSuccess(c, http.StatusCreated, data)
}
