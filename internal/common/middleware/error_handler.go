package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/common/logger"
)

const (
	RequestIDHeader = "X-Request-ID"

	keyRequestID = "request_id"
)

// RequestID propagates or generates a request id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(keyRequestID, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Status    string           `json:"status"`
	Error     string           `json:"error"`
	Code      errors.ErrorCode `json:"code"`
	RequestID string           `json:"requestId"`
	Path      string           `json:"path,omitempty"`
	Method    string           `json:"method,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// ErrorHandler recovers panics and renders the last error attached with c.Error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Error().
					Str("request_id", getRequestID(c)).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Interface("panic", recovered).
					Str("stack", string(debug.Stack())).
					Msg("Panic recovered")

				appErr := errors.New(errors.ErrCodeInternal, "Internal server error").
					WithDetail("panic", fmt.Sprintf("%v", recovered))
				sendErrorResponse(c, appErr)
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		appErr, ok := errors.AsAppError(err)
		if !ok {
			appErr = errors.Wrap(err, errors.ErrCodeInternal, "Handler error occurred")
		}
		sendErrorResponse(c, appErr)
	}
}

// Fail attaches err to the request and stops the handler chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func sendErrorResponse(c *gin.Context, appErr *errors.AppError) {
	requestID := getRequestID(c)
	appErr.WithRequestID(requestID).
		WithUserID(getUserID(c)).
		WithContext("path", c.Request.URL.Path).
		WithContext("method", c.Request.Method)

	logError(appErr, c)

	message := appErr.Message
	if appErr.IsInternal() {
		message = "Internal server error"
	}

	c.JSON(StatusCode(appErr), ErrorResponse{
		Status:    "error",
		Error:     message,
		Code:      appErr.Code,
		RequestID: requestID,
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
		Timestamp: time.Now(),
	})
}

// StatusCode maps an error class to its HTTP status.
func StatusCode(appErr *errors.AppError) int {
	switch appErr.Class() {
	case errors.ClassAuthentication:
		return http.StatusUnauthorized
	case errors.ClassForbidden:
		return http.StatusForbidden
	case errors.ClassNotFound:
		return http.StatusNotFound
	case errors.ClassValidation, errors.ClassResource:
		return http.StatusBadRequest
	case errors.ClassStateConflict:
		return http.StatusConflict
	default:
		if appErr.Code == errors.ErrCodeCache {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}

func logError(appErr *errors.AppError, c *gin.Context) {
	var ev *zerolog.Event
	switch {
	case appErr.IsInternal():
		ev = logger.Error()
	case appErr.IsUnauthorized():
		ev = logger.Warn()
	default:
		ev = logger.Info()
	}

	ev = ev.Str("request_id", appErr.RequestID).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Str("error_class", string(appErr.Class())).
		Str("error_message", appErr.Message)
	if appErr.UserID != 0 {
		ev = ev.Int64("user_id", appErr.UserID)
	}
	if len(appErr.Details) > 0 {
		ev = ev.Interface("details", appErr.Details)
	}
	if appErr.Cause != nil {
		ev = ev.Err(appErr.Cause)
	}
	ev.Msg("Request failed")
}

func getRequestID(c *gin.Context) string {
	if id := c.GetString(keyRequestID); id != "" {
		return id
	}
	return "unknown"
}
