package supplier

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrAuthExpired токен отклонен поставщиком: нужно обновить и повторить
var ErrAuthExpired = errors.New("supplier access token expired or rejected")

// ErrCircuitOpen запросы к поставщику временно заблокированы после серии сбоев
var ErrCircuitOpen = errors.New("supplier circuit breaker is open")

// NotFoundError у поставщика нет данных ни по одному из испробованных ключей.
// Отличается от транспортных ошибок: не ретраится и не валит circuit breaker
type NotFoundError struct {
	Input    string
	Attempts []string // Методы поиска в порядке выполнения
}

// Error реализует интерфейс error
func (e *NotFoundError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("supplier has no data for %q", e.Input)
	}
	return fmt.Sprintf("supplier has no data for %q (tried: %s)", e.Input, strings.Join(e.Attempts, ", "))
}

// IsNotFound сообщает, является ли ошибка отказом "нет данных"
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// UnrecognizedInputError входная строка не распознана ни одной эвристикой.
// По инварианту резолвера поиск для такого входа не выполняется вовсе
type UnrecognizedInputError struct {
	Input string
	Hint  string
}

// Error реализует интерфейс error
func (e *UnrecognizedInputError) Error() string {
	return fmt.Sprintf("unrecognized product identifier %q: %s", e.Input, e.Hint)
}

// StatusError транспортный ответ с неуспешным HTTP статусом
type StatusError struct {
	Status int
	Body   string
}

// Error реализует интерфейс error
func (e *StatusError) Error() string {
	return fmt.Sprintf("supplier API returned HTTP %d: %s", e.Status, truncate(e.Body, 200))
}

// IsTransient определяет, стоит ли повторять запрос: таймауты, обрывы
// соединения и 5xx считаются временными. "Нет данных" и ошибки
// авторизации временными не являются
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsNotFound(err) || errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrCircuitOpen) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status >= 500 || statusErr.Status == 429
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{"connection reset", "connection refused", "EOF", "broken pipe", "no such host"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// truncate обрезает строку до n символов для логов
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
