package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "giveaway-core-backend/internal/common/errors"
	"giveaway-core-backend/internal/common/logger"
)

// RequestID propagates the caller's X-Request-ID or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger logs one structured line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		logger.Info().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("body_size", c.Writer.Size()).
			Msg("request processed")
	}
}

// Recovery turns panics into INTERNAL_ERROR responses.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("panic recovered")

		RespondError(c, apperrors.New(apperrors.ErrCodeInternal, "internal server error"))
	})
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Success   bool                `json:"success"`
	Error     *apperrors.AppError `json:"error"`
	Timestamp time.Time           `json:"timestamp"`
	RequestID string              `json:"request_id"`
	Path      string              `json:"path,omitempty"`
}

// RespondError writes err as a JSON error envelope with the HTTP status
// mapped from its code.
func RespondError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrCodeInternal, "unexpected error")
	}

	requestID := GetRequestID(c)
	appErr.WithRequestID(requestID)

	logEvent := logger.Error()
	if appErr.IsNotFound() || appErr.Code == apperrors.ErrCodeValidation {
		logEvent = logger.Info()
	} else if !isServerFault(appErr.Code) {
		logEvent = logger.Warn()
	}
	logEvent.
		Str("request_id", requestID).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Err(appErr).
		Msg("request failed")

	c.AbortWithStatusJSON(httpStatus(appErr.Code), ErrorResponse{
		Success:   false,
		Error:     appErr,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
		Path:      c.Request.URL.Path,
	})
}

func httpStatus(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized, apperrors.ErrCodeAccountValidationFailed:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound, apperrors.ErrCodeGiveawayNotFound, apperrors.ErrCodeNoActiveGiveaway:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict, apperrors.ErrCodeImmutableState,
		apperrors.ErrCodeCannotPublish, apperrors.ErrCodeCannotFinish:
		return http.StatusConflict
	case apperrors.ErrCodeUnavailable, apperrors.ErrCodeDependencyUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeUnknown:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isServerFault(code apperrors.ErrorCode) bool {
	switch code {
	case apperrors.ErrCodeInternal, apperrors.ErrCodeUnavailable,
		apperrors.ErrCodeDependencyUnavailable, apperrors.ErrCodeUnknown,
		apperrors.ErrCodeExhausted:
		return true
	}
	return false
}

// GetRequestID returns the request id set by RequestID, or "unknown".
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return "unknown"
}
