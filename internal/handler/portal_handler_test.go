package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/quizdrive/quizdrive-backend/internal/engine"
	"github.com/quizdrive/quizdrive-backend/internal/response"
	"github.com/quizdrive/quizdrive-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type errorEnvelope struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func callFailEngine(t *testing.T, err error) (int, errorEnvelope) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	failEngine(c, err)

	var body errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return w.Code, body
}

func TestFailEngineMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   response.ErrCode
	}{
		{
			name:       "validation error",
			err:        &engine.ValidationError{Field: "phone", Reason: "phone is required"},
			wantStatus: http.StatusBadRequest,
			wantCode:   response.ErrRegistrationFields,
		},
		{
			name:       "denied missing email",
			err:        &engine.AccessDeniedError{Reason: engine.DenyMissingEmail},
			wantStatus: http.StatusForbidden,
			wantCode:   response.ErrEmailRequired,
		},
		{
			name:       "denied not authorized",
			err:        &engine.AccessDeniedError{Reason: engine.DenyNotAuthorized},
			wantStatus: http.StatusForbidden,
			wantCode:   response.ErrAccessDenied,
		},
		{
			name:       "storage error",
			err:        &engine.StorageError{Op: "create participant", Err: errors.New("down")},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   response.ErrRegistrationRetry,
		},
		{
			name:       "wrong state",
			err:        &engine.ErrSessionState{Op: "begin", State: engine.StateCompleted},
			wantStatus: http.StatusConflict,
			wantCode:   response.ErrSessionState,
		},
		{
			name:       "unknown session",
			err:        service.ErrSessionNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   response.ErrSessionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := callFailEngine(t, tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if body.Error.Code != string(tt.wantCode) {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestFailEngineDenyReasonsDiffer(t *testing.T) {
	_, missing := callFailEngine(t, &engine.AccessDeniedError{Reason: engine.DenyMissingEmail})
	_, unauthorized := callFailEngine(t, &engine.AccessDeniedError{Reason: engine.DenyNotAuthorized})

	if missing.Error.Code == unauthorized.Error.Code {
		t.Errorf("both deny reasons map to code %q", missing.Error.Code)
	}
	if missing.Error.Message == unauthorized.Error.Message {
		t.Errorf("both deny reasons map to message %q", missing.Error.Message)
	}
}

func TestFailEngineValidationCarriesField(t *testing.T) {
	_, body := callFailEngine(t, &engine.ValidationError{Field: "name", Reason: "name is required"})
	if body.Error.Fields["name"] != "name is required" {
		t.Errorf("fields = %v, want name reason carried through", body.Error.Fields)
	}
}
