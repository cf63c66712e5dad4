package errors

import (
	"sync"
	"time"
)

// ErrorMetricsCollector накапливает метрики ошибок для эндпоинта мониторинга
type ErrorMetricsCollector struct {
	mu sync.RWMutex

	totalErrors      int64
	errorsByType     map[string]int64 // По классу ошибки (NotFoundError, BadGatewayError и т.д.)
	errorsByCode     map[int]int64    // По HTTP статусу
	errorsByEndpoint map[string]int64 // По пути запроса

	lastErrors    []ErrorRecord // Последние N ошибок, новые в начале
	maxLastErrors int

	startTime time.Time
}

// ErrorRecord запись об одной ошибке
type ErrorRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Code        int       `json:"code"`
	Message     string    `json:"message"`
	Endpoint    string    `json:"endpoint"`
	RequestID   string    `json:"request_id"`
	UserMessage string    `json:"user_message"`
}

// NewErrorMetricsCollector создает новый сборщик метрик ошибок
func NewErrorMetricsCollector() *ErrorMetricsCollector {
	return &ErrorMetricsCollector{
		errorsByType:     make(map[string]int64),
		errorsByCode:     make(map[int]int64),
		errorsByEndpoint: make(map[string]int64),
		lastErrors:       make([]ErrorRecord, 0),
		maxLastErrors:    100,
		startTime:        time.Now(),
	}
}

// RecordError записывает ошибку в метрики
func (emc *ErrorMetricsCollector) RecordError(err *AppError, endpoint, requestID string) {
	emc.mu.Lock()
	defer emc.mu.Unlock()

	emc.totalErrors++

	errorType := classifyByCode(err.Code)
	emc.errorsByType[errorType]++
	emc.errorsByCode[err.Code]++
	if endpoint != "" {
		emc.errorsByEndpoint[endpoint]++
	}

	record := ErrorRecord{
		Timestamp:   time.Now(),
		Type:        errorType,
		Code:        err.Code,
		Message:     err.Error(),
		Endpoint:    endpoint,
		RequestID:   requestID,
		UserMessage: err.UserMessage(),
	}
	emc.lastErrors = append([]ErrorRecord{record}, emc.lastErrors...)
	if len(emc.lastErrors) > emc.maxLastErrors {
		emc.lastErrors = emc.lastErrors[:emc.maxLastErrors]
	}
}

// classifyByCode сопоставляет HTTP статус с классом ошибки
func classifyByCode(code int) string {
	switch code {
	case 400:
		return "ValidationError"
	case 401:
		return "UnauthorizedError"
	case 403:
		return "ForbiddenError"
	case 404:
		return "NotFoundError"
	case 409:
		return "ConflictError"
	case 500:
		return "InternalError"
	case 502:
		return "BadGatewayError"
	case 503:
		return "ServiceUnavailableError"
	case 504:
		return "GatewayTimeoutError"
	default:
		return "UnknownError"
	}
}

// GetMetrics возвращает снимок всех метрик ошибок
func (emc *ErrorMetricsCollector) GetMetrics() map[string]interface{} {
	emc.mu.RLock()
	defer emc.mu.RUnlock()

	errorsByType := make(map[string]int64, len(emc.errorsByType))
	for k, v := range emc.errorsByType {
		errorsByType[k] = v
	}

	errorsByCode := make(map[int]int64, len(emc.errorsByCode))
	for k, v := range emc.errorsByCode {
		errorsByCode[k] = v
	}

	errorsByEndpoint := make(map[string]int64, len(emc.errorsByEndpoint))
	for k, v := range emc.errorsByEndpoint {
		errorsByEndpoint[k] = v
	}

	lastErrors := make([]ErrorRecord, len(emc.lastErrors))
	copy(lastErrors, emc.lastErrors)

	return map[string]interface{}{
		"total_errors":       emc.totalErrors,
		"errors_by_type":     errorsByType,
		"errors_by_code":     errorsByCode,
		"errors_by_endpoint": errorsByEndpoint,
		"last_errors":        lastErrors,
		"uptime_seconds":     time.Since(emc.startTime).Seconds(),
	}
}

// GetErrorsByType возвращает количество ошибок по классам
func (emc *ErrorMetricsCollector) GetErrorsByType() map[string]int64 {
	emc.mu.RLock()
	defer emc.mu.RUnlock()

	result := make(map[string]int64, len(emc.errorsByType))
	for k, v := range emc.errorsByType {
		result[k] = v
	}
	return result
}

// GetLastErrors возвращает последние limit ошибок
func (emc *ErrorMetricsCollector) GetLastErrors(limit int) []ErrorRecord {
	emc.mu.RLock()
	defer emc.mu.RUnlock()

	if limit <= 0 || limit > len(emc.lastErrors) {
		limit = len(emc.lastErrors)
	}

	result := make([]ErrorRecord, limit)
	copy(result, emc.lastErrors[:limit])
	return result
}

// Reset сбрасывает все метрики
func (emc *ErrorMetricsCollector) Reset() {
	emc.mu.Lock()
	defer emc.mu.Unlock()

	emc.totalErrors = 0
	emc.errorsByType = make(map[string]int64)
	emc.errorsByCode = make(map[int]int64)
	emc.errorsByEndpoint = make(map[string]int64)
	emc.lastErrors = make([]ErrorRecord, 0)
	emc.startTime = time.Now()
}
