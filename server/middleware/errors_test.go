package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	servererrors "importserver/server/errors"
)

// TestErrorResponse проверяет структуру ответа об ошибке
func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse{
		Error:     "test error",
		Timestamp: time.Now().Format(time.RFC3339),
		RequestID: "test-request-id",
	}

	if resp.Error == "" {
		t.Error("ErrorResponse.Error should not be empty")
	}

	if resp.Timestamp == "" {
		t.Error("ErrorResponse.Timestamp should not be empty")
	}
}

// TestHandleHTTPError_AppError проверяет, что AppError сохраняет статус и сообщение
func TestHandleHTTPError_AppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantText   string
	}{
		{
			name:       "not found",
			err:        servererrors.NewNotFoundError("Товар не найден", errors.New("no rows")),
			wantStatus: http.StatusNotFound,
			wantText:   "Товар не найден",
		},
		{
			name:       "conflict",
			err:        servererrors.NewConflictError("Импорт уже выполняется", nil),
			wantStatus: http.StatusConflict,
			wantText:   "Импорт уже выполняется",
		},
		{
			name:       "bad gateway",
			err:        servererrors.NewBadGatewayError("API поставщика недоступно", errors.New("dial tcp: timeout")),
			wantStatus: http.StatusBadGateway,
			wantText:   "API поставщика недоступно",
		},
		{
			name:       "plain error becomes 500",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantText:   "Внутренняя ошибка сервера",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/products/1", nil)
			w := httptest.NewRecorder()

			HandleHTTPError(w, req, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding error response: %v", err)
			}
			if resp.Error != tt.wantText {
				t.Errorf("error text = %q, want %q", resp.Error, tt.wantText)
			}
			if resp.Timestamp == "" {
				t.Error("timestamp should be set")
			}
		})
	}
}

// TestWriteJSONResponse проверяет запись успешного JSON ответа
func TestWriteJSONResponse(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	data := map[string]string{"status": "ok"}
	WriteJSONResponse(w, req, data, http.StatusOK)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var decoded map[string]string
	if err := json.NewDecoder(w.Body).Decode(&decoded); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if decoded["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", decoded)
	}
}

// TestRecoverMiddleware проверяет перехват паники
func TestRecoverMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})

	middleware := RecoverMiddleware(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	middleware.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// TestErrorMetricsRecording проверяет учет ошибок в метриках
func TestErrorMetricsRecording(t *testing.T) {
	InitErrorMetrics()

	req := httptest.NewRequest("GET", "/api/import/jobs", nil)
	w := httptest.NewRecorder()

	HandleHTTPError(w, req, servererrors.NewConflictError("Импорт уже выполняется", nil))

	byType := GetErrorMetrics().GetErrorsByType()
	if byType["ConflictError"] != 1 {
		t.Errorf("ConflictError count = %d, want 1", byType["ConflictError"])
	}
}
