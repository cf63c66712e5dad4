package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"importserver/internal/domain/models"
)

// LogsHandler обработчик журнала сервера и ошибок клиента.
// Держит кольцевой буфер последних записей для отдачи через API
type LogsHandler struct {
	baseHandler *BaseHandler

	mu      sync.RWMutex
	entries []models.LogEntry
	next    int
	filled  bool
}

// NewLogsHandler создает новый обработчик логов с буфером на bufferSize записей
func NewLogsHandler(baseHandler *BaseHandler, bufferSize int) *LogsHandler {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &LogsHandler{
		baseHandler: baseHandler,
		entries:     make([]models.LogEntry, bufferSize),
	}
}

// Append кладет запись в кольцевой буфер, вытесняя самую старую
func (h *LogsHandler) Append(entry models.LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.next] = entry
	h.next = (h.next + 1) % len(h.entries)
	if h.next == 0 {
		h.filled = true
	}
}

// Recent возвращает до limit последних записей, свежие в конце
func (h *LogsHandler) Recent(limit int) []models.LogEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ordered := make([]models.LogEntry, 0, len(h.entries))
	if h.filled {
		ordered = append(ordered, h.entries[h.next:]...)
	}
	ordered = append(ordered, h.entries[:h.next]...)

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered
}

// ClientErrorRequest описывает структуру запроса на логирование ошибки клиента
type ClientErrorRequest struct {
	Error     interface{} `json:"error"`
	Stack     string      `json:"stack,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	URL       string      `json:"url,omitempty"`
	Context   interface{} `json:"context,omitempty"`
	UserAgent string      `json:"user_agent,omitempty"`
}

// HandleClientError обрабатывает POST запросы для логирования ошибок клиента
// @Summary Логирование ошибок клиента
// @Description Принимает ошибки от frontend и логирует их на сервере
// @Tags logs
// @Accept json
// @Produce json
// @Param error body ClientErrorRequest true "Данные об ошибке"
// @Success 200 {object} map[string]interface{} "Успешное логирование"
// @Failure 400 {object} ErrorResponse "Некорректный запрос"
// @Failure 500 {object} ErrorResponse "Внутренняя ошибка"
// @Router /api/logs/client-error [post]
func (h *LogsHandler) HandleClientError(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.baseHandler.HandleMethodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req ClientErrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("[ClientError] Failed to decode request body", "error", err)
		h.baseHandler.WriteJSONError(w, r, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Логируем ошибку клиента
	slog.Error("[ClientError] Frontend error",
		"error", req.Error,
		"stack", req.Stack,
		"timestamp", req.Timestamp,
		"url", req.URL,
		"context", req.Context,
		"user_agent", req.UserAgent,
		"remote_addr", r.RemoteAddr,
		"request_id", r.Header.Get("X-Request-ID"),
	)

	// Дублируем в кольцевой буфер, чтобы ошибка была видна в /api/logs/recent
	h.Append(models.LogEntry{
		Timestamp: time.Now(),
		Level:     "ERROR",
		Message:   fmt.Sprintf("Frontend: %v", req.Error),
		Endpoint:  req.URL,
	})

	// Возвращаем успешный ответ
	response := map[string]interface{}{
		"success":   true,
		"message":   "Error logged successfully",
		"logged_at": time.Now().Format(time.RFC3339),
	}

	h.baseHandler.WriteJSONResponse(w, r, response, http.StatusOK)
}

// HandleRecentLogs отдает последние записи журнала сервера
// @Summary Последние записи журнала
// @Description Возвращает последние записи серверного журнала из кольцевого буфера
// @Tags logs
// @Accept json
// @Produce json
// @Param limit query int false "Максимум записей (по умолчанию 100)"
// @Success 200 {object} map[string]interface{} "Записи журнала"
// @Router /api/logs/recent [get]
func (h *LogsHandler) HandleRecentLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.baseHandler.HandleMethodNotAllowed(w, r, http.MethodGet)
		return
	}

	limit, err := ValidateIntParam(r, "limit", 100, 1, 1000)
	if err != nil {
		h.baseHandler.WriteJSONError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	logs := h.Recent(limit)

	h.baseHandler.WriteJSONResponse(w, r, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	}, http.StatusOK)
}
