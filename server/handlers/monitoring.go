package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"importserver/server/middleware"
	"importserver/server/monitoring"
)

// MonitoringHandler обработчик метрик и здоровья сервера импорта
type MonitoringHandler struct {
	*BaseHandler
	healthChecker    *monitoring.HealthChecker
	metricsCollector *monitoring.MetricsCollector
}

// NewMonitoringHandler создает новый обработчик мониторинга
func NewMonitoringHandler(
	baseHandler *BaseHandler,
	healthChecker *monitoring.HealthChecker,
	metricsCollector *monitoring.MetricsCollector,
) *MonitoringHandler {
	return &MonitoringHandler{
		BaseHandler:      baseHandler,
		healthChecker:    healthChecker,
		metricsCollector: metricsCollector,
	}
}

// HandleMonitoringMetrics обрабатывает запрос общих метрик мониторинга
func (h *MonitoringHandler) HandleMonitoringMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.metricsCollector == nil {
		h.WriteJSONError(w, r, "Metrics collector not available", http.StatusServiceUnavailable)
		return
	}

	h.WriteJSONResponse(w, r, h.collectMetrics(), http.StatusOK)
}

// collectMetrics собирает метрики сервера и ошибок в один снимок
func (h *MonitoringHandler) collectMetrics() map[string]interface{} {
	metrics := h.metricsCollector.GetMetrics()
	metrics["errors"] = middleware.GetErrorMetrics().GetMetrics()
	return metrics
}

// HandleMonitoringHealth обрабатывает запрос полной проверки здоровья
func (h *MonitoringHandler) HandleMonitoringHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.healthChecker == nil {
		h.WriteJSONError(w, r, "Health checker not available", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result := h.healthChecker.Check(ctx)

	status := http.StatusOK
	if result.Status == monitoring.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	h.WriteJSONResponse(w, r, result, status)
}

// HandleMonitoringEvents обрабатывает SSE соединение для real-time метрик мониторинга
func (h *MonitoringHandler) HandleMonitoringEvents(w http.ResponseWriter, r *http.Request) {
	// Обработка паники на верхнем уровне
	defer func() {
		if panicVal := recover(); panicVal != nil {
			slog.Error("[Monitoring] Panic in HandleMonitoringEvents",
				"panic", panicVal,
				"stack", string(debug.Stack()),
				"path", r.URL.Path,
			)
			// Если заголовки еще не установлены, отправляем обычный HTTP ответ
			if w.Header().Get("Content-Type") != "text/event-stream" {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}
	}()

	// Проверяем поддержку Flusher ДО установки заголовков
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Устанавливаем заголовки для SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	// Отправляем начальное событие с обработкой ошибок
	if _, err := fmt.Fprintf(w, "data: %s\n\n", `{"type":"connected","message":"Connected to monitoring events"}`); err != nil {
		slog.Error("[Monitoring] Error sending initial connection message",
			"error", err,
			"path", r.URL.Path,
		)
		return
	}
	flusher.Flush()

	// Создаем тикер для периодической отправки метрик
	metricsTicker := time.NewTicker(5 * time.Second)
	defer metricsTicker.Stop()

	// Heartbeat тикер (каждые 10 секунд для предотвращения таймаута)
	heartbeatTicker := time.NewTicker(10 * time.Second)
	defer heartbeatTicker.Stop()

	// Канал для отслеживания закрытия соединения
	clientGone := r.Context().Done()

	for {
		select {
		case <-clientGone:
			// Клиент отключился
			slog.Info("[Monitoring] SSE client disconnected",
				"error", r.Context().Err(),
				"path", r.URL.Path,
			)
			return

		case <-metricsTicker.C:
			// Собираем текущие метрики с обработкой паники
			func() {
				defer func() {
					if panicVal := recover(); panicVal != nil {
						slog.Error("[Monitoring] Panic while collecting metrics",
							"panic", panicVal,
							"stack", string(debug.Stack()),
							"path", r.URL.Path,
						)
						errorMsg := fmt.Sprintf(`{"type":"error","error":"internal error retrieving metrics","details":"%v"}`, panicVal)
						if _, writeErr := fmt.Fprintf(w, "data: %s\n\n", errorMsg); writeErr != nil {
							slog.Error("[Monitoring] Error sending panic error message",
								"error", writeErr,
								"path", r.URL.Path,
							)
							return
						}
						flusher.Flush()
					}
				}()

				if h.metricsCollector == nil {
					return
				}

				metricsData := map[string]interface{}{
					"type":      "metrics",
					"timestamp": time.Now().Format(time.RFC3339),
					"metrics":   h.collectMetrics(),
				}

				metricsJSON, err := json.Marshal(metricsData)
				if err != nil {
					slog.Error("[Monitoring] Error marshaling metrics",
						"error", err,
						"path", r.URL.Path,
					)
					if _, writeErr := fmt.Fprintf(w, "data: %s\n\n", `{"type":"error","error":"failed to marshal metrics"}`); writeErr != nil {
						slog.Error("[Monitoring] Error sending marshal error message",
							"error", writeErr,
							"path", r.URL.Path,
						)
						return
					}
					flusher.Flush()
					return
				}

				if _, err := fmt.Fprintf(w, "data: %s\n\n", string(metricsJSON)); err != nil {
					slog.Error("[Monitoring] Error sending SSE metrics",
						"error", err,
						"path", r.URL.Path,
					)
					return
				}
				flusher.Flush()
			}()

		case <-heartbeatTicker.C:
			// Отправляем heartbeat для поддержания соединения
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				slog.Error("[Monitoring] Error sending heartbeat",
					"error", err,
					"path", r.URL.Path,
				)
				return
			}
			flusher.Flush()
		}
	}
}
