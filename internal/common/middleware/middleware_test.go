package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "giveaway-core-backend/internal/common/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(t *testing.T, err error, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	router := gin.New()
	router.Use(RequestID())
	router.GET("/boom", func(c *gin.Context) {
		RespondError(c, err)
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRespondErrorStatusMapping(t *testing.T) {
	tests := []struct {
		code apperrors.ErrorCode
		want int
	}{
		{apperrors.ErrCodeValidation, http.StatusBadRequest},
		{apperrors.ErrCodeGiveawayNotFound, http.StatusNotFound},
		{apperrors.ErrCodeNoActiveGiveaway, http.StatusNotFound},
		{apperrors.ErrCodeAccountValidationFailed, http.StatusUnauthorized},
		{apperrors.ErrCodeForbidden, http.StatusForbidden},
		{apperrors.ErrCodeConflict, http.StatusConflict},
		{apperrors.ErrCodeImmutableState, http.StatusConflict},
		{apperrors.ErrCodeCannotPublish, http.StatusConflict},
		{apperrors.ErrCodeCannotFinish, http.StatusConflict},
		{apperrors.ErrCodeDependencyUnavailable, http.StatusServiceUnavailable},
		{apperrors.ErrCodeUnknown, http.StatusBadGateway},
		{apperrors.ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		w := perform(t, apperrors.New(tt.code, "boom"), nil)
		assert.Equal(t, tt.want, w.Code, "code %s", tt.code)
	}
}

func TestRespondErrorEnvelope(t *testing.T) {
	w := perform(t, apperrors.New(apperrors.ErrCodeConflict, "raced"), nil)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, apperrors.ErrCodeConflict, body.Error.Code)
	assert.NotEmpty(t, body.RequestID)
}

func TestRespondErrorWrapsPlainErrors(t *testing.T) {
	w := perform(t, errors.New("plain"), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	w := perform(t, apperrors.New(apperrors.ErrCodeValidation, "boom"),
		map[string]string{"X-Request-ID": "req-123"})

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "req-123", body.RequestID)
}
