package monitoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// HealthStatus статус здоровья компонента
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth здоровье отдельного компонента
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Latency   time.Duration `json:"latency,omitempty"`
}

// HealthCheckResult результат проверки здоровья сервера импорта
type HealthCheckResult struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     time.Duration              `json:"uptime"`
	Version    string                     `json:"version"`
	Components map[string]ComponentHealth `json:"components"`
	System     SystemHealth               `json:"system"`
}

// SystemHealth системные метрики
type SystemHealth struct {
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	Goroutines    int     `json:"goroutines"`
}

// HealthCheckFunc функция проверки отдельного компонента
type HealthCheckFunc func(ctx context.Context) ComponentHealth

// HealthChecker проверяет здоровье сервера и его зависимостей
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]HealthCheckFunc
	startTime  time.Time
	version    string
	catalogDB  *sql.DB
	serviceDB  interface {
		Ping() error
	}
}

// NewHealthChecker создает проверку здоровья для каталожной и служебной БД
func NewHealthChecker(version string, catalogDB *sql.DB, serviceDB interface{ Ping() error }) *HealthChecker {
	return &HealthChecker{
		components: make(map[string]HealthCheckFunc),
		startTime:  time.Now(),
		version:    version,
		catalogDB:  catalogDB,
		serviceDB:  serviceDB,
	}
}

// RegisterComponent регистрирует дополнительную проверку (поставщик, кэш изображений)
func (hc *HealthChecker) RegisterComponent(name string, check HealthCheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.components[name] = check
}

// Check выполняет полную проверку здоровья
func (hc *HealthChecker) Check(ctx context.Context) HealthCheckResult {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := HealthCheckResult{
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now(),
		Uptime:     time.Since(hc.startTime).Round(time.Second),
		Version:    hc.version,
		Components: make(map[string]ComponentHealth),
	}

	// Каталожная БД критична: без нее сервер бесполезен
	if hc.catalogDB != nil {
		start := time.Now()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := hc.catalogDB.PingContext(pingCtx)
		cancel()

		component := ComponentHealth{
			Name:      "catalog_db",
			Status:    HealthStatusHealthy,
			Timestamp: time.Now(),
			Latency:   time.Since(start).Round(time.Millisecond),
		}
		if err != nil {
			component.Status = HealthStatusUnhealthy
			component.Message = fmt.Sprintf("каталожная БД недоступна: %v", err)
			result.Status = HealthStatusUnhealthy
		}
		result.Components["catalog_db"] = component
	}

	// Служебная БД (задания, конфигурация) — деградация, но не отказ
	if hc.serviceDB != nil {
		start := time.Now()
		err := hc.serviceDB.Ping()

		component := ComponentHealth{
			Name:      "service_db",
			Status:    HealthStatusHealthy,
			Timestamp: time.Now(),
			Latency:   time.Since(start).Round(time.Millisecond),
		}
		if err != nil {
			component.Status = HealthStatusDegraded
			component.Message = fmt.Sprintf("служебная БД недоступна: %v", err)
			if result.Status == HealthStatusHealthy {
				result.Status = HealthStatusDegraded
			}
		}
		result.Components["service_db"] = component
	}

	for name, check := range hc.components {
		component := check(ctx)
		result.Components[name] = component

		switch component.Status {
		case HealthStatusUnhealthy:
			result.Status = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if result.Status == HealthStatusHealthy {
				result.Status = HealthStatusDegraded
			}
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	result.System = SystemHealth{
		MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
		Goroutines:    runtime.NumGoroutine(),
	}

	return result
}

// HTTPHandler возвращает обработчик полной проверки здоровья
func (hc *HealthChecker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		result := hc.Check(ctx)

		w.Header().Set("Content-Type", "application/json")
		if result.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		if err := json.NewEncoder(w).Encode(result); err != nil {
			slog.Error("[HealthCheck] Failed to encode result", "error", err)
		}
	}
}

// LivenessHandler обработчик liveness-пробы
func (hc *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// ReadinessHandler обработчик readiness-пробы: готов, когда каталожная БД отвечает
func (hc *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	result := hc.Check(ctx)
	if component, ok := result.Components["catalog_db"]; ok && component.Status == HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT READY"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

// LogHealthStatus пишет сводку здоровья в журнал
func (hc *HealthChecker) LogHealthStatus(result HealthCheckResult) {
	attrs := []any{
		"status", result.Status,
		"uptime", result.Uptime.String(),
		"goroutines", result.System.Goroutines,
	}
	for name, component := range result.Components {
		if component.Status != HealthStatusHealthy {
			attrs = append(attrs, name, component.Message)
		}
	}

	switch result.Status {
	case HealthStatusUnhealthy:
		slog.Error("[HealthCheck] Server unhealthy", attrs...)
	case HealthStatusDegraded:
		slog.Warn("[HealthCheck] Server degraded", attrs...)
	default:
		slog.Info("[HealthCheck] Server healthy", attrs...)
	}
}
