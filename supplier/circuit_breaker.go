package supplier

import (
	"sync"
	"time"
)

// breakerState состояние circuit breaker клиента поставщика
type breakerState int

const (
	breakerClosed   breakerState = iota // Нормальная работа
	breakerOpen                         // Запросы блокируются после серии сбоев
	breakerHalfOpen                     // Пробное восстановление
)

// CircuitBreaker защищает от каскадных сбоев при недоступности API поставщика.
// Учитываются только транспортные ошибки: ответ "нет данных" — это успех
// с точки зрения доступности upstream
type CircuitBreaker struct {
	mu               sync.Mutex
	state            breakerState
	failureCount     int
	successCount     int           // Успехи в half-open
	failureThreshold int           // Порог сбоев для открытия
	successThreshold int           // Порог успехов для закрытия из half-open
	timeout          time.Duration // Пауза до пробного запроса
	lastFailureTime  time.Time
}

// NewCircuitBreaker создает breaker с порогами по умолчанию:
// открытие после 5 сбоев, закрытие после 2 успехов, пауза 30 секунд
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		state:            breakerClosed,
		failureThreshold: 5,
		successThreshold: 2,
		timeout:          30 * time.Second,
	}
}

// CanProceed сообщает, можно ли выполнять запрос.
// В открытом состоянии по истечении паузы breaker переходит в half-open
// и пропускает пробный запрос
func (cb *CircuitBreaker) CanProceed() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		return true

	case breakerOpen:
		if time.Since(cb.lastFailureTime) > cb.timeout {
			cb.state = breakerHalfOpen
			cb.successCount = 0
			return true
		}
		return false

	case breakerHalfOpen:
		return true

	default:
		return false
	}
}

// RecordSuccess учитывает успешный запрос
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		cb.failureCount = 0

	case breakerHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = breakerClosed
			cb.failureCount = 0
			cb.successCount = 0
		}
	}
}

// RecordFailure учитывает транспортный сбой
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()

	switch cb.state {
	case breakerClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.state = breakerOpen
		}

	case breakerHalfOpen:
		// Сбой пробного запроса возвращает breaker в открытое состояние
		cb.state = breakerOpen
		cb.failureCount = cb.failureThreshold
		cb.successCount = 0
	}
}

// State возвращает текстовое состояние для логов и мониторинга
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// StateDetails возвращает развернутое состояние для эндпоинта мониторинга
func (cb *CircuitBreaker) StateDetails() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	stateStr := "closed"
	canProceed := true
	switch cb.state {
	case breakerOpen:
		stateStr = "open"
		canProceed = time.Since(cb.lastFailureTime) > cb.timeout
	case breakerHalfOpen:
		stateStr = "half-open"
	}

	details := map[string]interface{}{
		"state":         stateStr,
		"can_proceed":   canProceed,
		"failure_count": cb.failureCount,
		"success_count": cb.successCount,
	}
	if !cb.lastFailureTime.IsZero() {
		details["last_failure_time"] = cb.lastFailureTime.Format(time.RFC3339)
	}
	return details
}
