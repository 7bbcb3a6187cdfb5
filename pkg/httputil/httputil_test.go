package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/satrioramadhan/scansek-api/pkg/errors"
	"github.com/satrioramadhan/scansek-api/pkg/logger"
	"github.com/satrioramadhan/scansek-api/pkg/validator"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func newRequest() *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	return req.WithContext(logger.WithCorrelationID(req.Context(), "corr-1"))
}

// --- WriteJSON / WriteSuccess ---

func TestWriteJSON_SetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusTeapot, Response{})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestWriteSuccess_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, http.StatusCreated, "created", map[string]string{"id": "1"})

	assert.Equal(t, http.StatusCreated, rec.Code)

	var raw map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.Equal(t, true, raw["success"])
	assert.Equal(t, "created", raw["message"])
	assert.NotContains(t, raw, "code")
	assert.NotContains(t, raw, "fields")
}

func TestWriteFailure_CarriesData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteFailure(rec, newRequest(), http.StatusForbidden, "ACCOUNT_NOT_VERIFIED", "verify first",
		map[string]any{"otp_sent": true})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "ACCOUNT_NOT_VERIFIED", resp.Code)
	assert.Equal(t, "corr-1", resp.RequestID)
	assert.Equal(t, true, resp.Data.(map[string]any)["otp_sent"])
}

// --- WriteError ---

func TestWriteError_AppErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", apperrors.NotFound("account", "a@x.com"), http.StatusNotFound, "NOT_FOUND"},
		{"duplicate", apperrors.AlreadyExists("account", "email", "a@x.com"), http.StatusBadRequest, "ALREADY_EXISTS"},
		{"unauthorized", apperrors.Unauthorized("wrong password"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"rate limited", apperrors.TooManyRequests("slow down"), http.StatusTooManyRequests, "RATE_LIMITED"},
		{"wrapped", fmt.Errorf("svc: %w", apperrors.InvalidInput("bad")), http.StatusBadRequest, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, newRequest(), tt.err, nil)

			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, "corr-1", resp.RequestID)
		})
	}
}

func TestWriteError_ValidationError(t *testing.T) {
	type body struct {
		Email string `json:"email" validate:"required,email"`
	}
	err := validator.Validate(body{})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	WriteError(rec, newRequest(), err, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, "is required", resp.Fields["email"])
}

func TestWriteError_UpstreamHidesCauseAndLogs(t *testing.T) {
	var logs bytes.Buffer
	fallback := slog.New(slog.NewJSONHandler(&logs, nil))

	err := apperrors.Upstream(http.StatusInternalServerError, "failed to send email",
		fmt.Errorf("sendgrid: 401 invalid api key"))

	rec := httptest.NewRecorder()
	WriteError(rec, newRequest(), err, fallback)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "failed to send email", resp.Message)
	assert.NotContains(t, rec.Body.String(), "api key")
	assert.Contains(t, logs.String(), "invalid api key")
}

func TestWriteError_UnknownErrorIsGeneric(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, newRequest(), fmt.Errorf("pq: connection reset"), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "an internal error occurred", resp.Message)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

// --- ParseUUID ---

func TestParseUUID(t *testing.T) {
	rec := httptest.NewRecorder()
	id, ok := ParseUUID(rec, "3f2b8c1e-8a7d-4c7e-9a51-0f3d2c1b4a99")
	assert.True(t, ok)
	assert.Equal(t, "3f2b8c1e-8a7d-4c7e-9a51-0f3d2c1b4a99", id.String())

	rec = httptest.NewRecorder()
	_, ok = ParseUUID(rec, "not-a-uuid")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decode(t, rec).Code)
}
