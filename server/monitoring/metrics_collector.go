package monitoring

import (
	"sync"
	"time"
)

// MetricsCollector собирает метрики производительности сервера импорта
type MetricsCollector struct {
	mu sync.RWMutex

	// HTTP метрики
	httpRequestsTotal     int64
	httpRequestsSuccess   int64
	httpRequestsError     int64
	httpRequestDuration   []time.Duration
	httpRequestDurationMu sync.RWMutex

	// Метрики пайплайна импорта
	importJobsStarted   int64
	importJobsCompleted int64
	importItemsTotal    int64
	importItemsSuccess  int64
	importItemsFailed   int64
	lastImportItemAt    time.Time

	// Database метрики
	dbConnectionsActive int64
	dbConnectionsIdle   int64

	// Системные метрики
	startTime     time.Time
	lastResetTime time.Time
}

// NewMetricsCollector создает новый сборщик метрик
func NewMetricsCollector() *MetricsCollector {
	now := time.Now()
	return &MetricsCollector{
		startTime:     now,
		lastResetTime: now,
	}
}

// RecordHTTPRequest записывает HTTP запрос
func (mc *MetricsCollector) RecordHTTPRequest(success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.httpRequestsTotal++
	if success {
		mc.httpRequestsSuccess++
	} else {
		mc.httpRequestsError++
	}

	mc.httpRequestDurationMu.Lock()
	mc.httpRequestDuration = append(mc.httpRequestDuration, duration)
	// Ограничиваем размер массива (храним последние 1000 записей)
	if len(mc.httpRequestDuration) > 1000 {
		mc.httpRequestDuration = mc.httpRequestDuration[len(mc.httpRequestDuration)-1000:]
	}
	mc.httpRequestDurationMu.Unlock()
}

// RecordImportJobStart записывает запуск фонового задания
func (mc *MetricsCollector) RecordImportJobStart() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.importJobsStarted++
}

// RecordImportJobDone записывает завершение фонового задания
func (mc *MetricsCollector) RecordImportJobDone() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.importJobsCompleted++
}

// RecordImportItem записывает обработанную позицию импорта
func (mc *MetricsCollector) RecordImportItem(success bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.importItemsTotal++
	if success {
		mc.importItemsSuccess++
	} else {
		mc.importItemsFailed++
	}
	mc.lastImportItemAt = time.Now()
}

// SetDBConnections устанавливает количество подключений к БД
func (mc *MetricsCollector) SetDBConnections(active, idle int64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.dbConnectionsActive = active
	mc.dbConnectionsIdle = idle
}

// GetMetrics возвращает текущие метрики
func (mc *MetricsCollector) GetMetrics() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	// Вычисляем среднее время ответа HTTP
	mc.httpRequestDurationMu.RLock()
	avgHTTPDuration := time.Duration(0)
	if len(mc.httpRequestDuration) > 0 {
		total := time.Duration(0)
		for _, d := range mc.httpRequestDuration {
			total += d
		}
		avgHTTPDuration = total / time.Duration(len(mc.httpRequestDuration))
	}
	mc.httpRequestDurationMu.RUnlock()

	// Вычисляем success rate
	successRate := 0.0
	if mc.httpRequestsTotal > 0 {
		successRate = float64(mc.httpRequestsSuccess) / float64(mc.httpRequestsTotal) * 100
	}

	importSuccessRate := 0.0
	if mc.importItemsTotal > 0 {
		importSuccessRate = float64(mc.importItemsSuccess) / float64(mc.importItemsTotal) * 100
	}

	// Вычисляем requests per second
	uptime := time.Since(mc.startTime).Seconds()
	requestsPerSecond := 0.0
	if uptime > 0 {
		requestsPerSecond = float64(mc.httpRequestsTotal) / uptime
	}

	lastItem := ""
	if !mc.lastImportItemAt.IsZero() {
		lastItem = mc.lastImportItemAt.Format(time.RFC3339)
	}

	return map[string]interface{}{
		"http": map[string]interface{}{
			"requests_total":      mc.httpRequestsTotal,
			"requests_success":    mc.httpRequestsSuccess,
			"requests_error":      mc.httpRequestsError,
			"success_rate":        successRate,
			"avg_duration_ms":     avgHTTPDuration.Milliseconds(),
			"requests_per_second": requestsPerSecond,
		},
		"imports": map[string]interface{}{
			"jobs_started":   mc.importJobsStarted,
			"jobs_completed": mc.importJobsCompleted,
			"items_total":    mc.importItemsTotal,
			"items_success":  mc.importItemsSuccess,
			"items_failed":   mc.importItemsFailed,
			"success_rate":   importSuccessRate,
			"last_item_at":   lastItem,
		},
		"database": map[string]interface{}{
			"connections_active": mc.dbConnectionsActive,
			"connections_idle":   mc.dbConnectionsIdle,
		},
		"system": map[string]interface{}{
			"uptime_seconds": uptime,
			"start_time":     mc.startTime.Format(time.RFC3339),
		},
	}
}

// Reset сбрасывает метрики
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.httpRequestsTotal = 0
	mc.httpRequestsSuccess = 0
	mc.httpRequestsError = 0
	mc.importJobsStarted = 0
	mc.importJobsCompleted = 0
	mc.importItemsTotal = 0
	mc.importItemsSuccess = 0
	mc.importItemsFailed = 0
	mc.lastImportItemAt = time.Time{}
	mc.dbConnectionsActive = 0
	mc.dbConnectionsIdle = 0
	mc.lastResetTime = time.Now()

	mc.httpRequestDurationMu.Lock()
	mc.httpRequestDuration = nil
	mc.httpRequestDurationMu.Unlock()
}
