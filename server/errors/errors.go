package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError ошибка приложения с HTTP статусом и внутренним контекстом
type AppError struct {
	Code    int    `json:"status_code"` // HTTP статус код
	Message string `json:"message"`     // Сообщение для пользователя
	Err     error  `json:"-"`           // Внутренняя ошибка, только для логов
	Context string `json:"-"`           // Контекст возникновения (операция, параметры)
}

// Error реализует интерфейс error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap возвращает вложенную ошибку для errors.Is и errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode возвращает HTTP статус код ошибки.
// Реализует интерфейс middleware.HTTPError
func (e *AppError) StatusCode() int {
	return e.Code
}

// UserMessage возвращает сообщение для пользователя.
// Реализует интерфейс middleware.HTTPError
func (e *AppError) UserMessage() string {
	return e.Message
}

// GetContext возвращает контекст ошибки.
// Реализует интерфейс middleware.HTTPError
func (e *AppError) GetContext() string {
	return e.Context
}

// WithContext добавляет контекст к ошибке
func (e *AppError) WithContext(context string) *AppError {
	e.Context = context
	return e
}

// NewNotFoundError создает ошибку 404 Not Found
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: message,
		Err:     err,
	}
}

// NewValidationError создает ошибку 400 Bad Request
func NewValidationError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Err:     err,
	}
}

// NewInternalError создает ошибку 500 Internal Server Error.
// Пользователь видит общий текст, детали остаются в логах
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: "Внутренняя ошибка сервера",
		Err:     errors.Join(errors.New(message), err),
	}
}

// NewConflictError создает ошибку 409 Conflict.
// Используется в том числе для ответа "задача уже выполняется"
func NewConflictError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Message: message,
		Err:     err,
	}
}

// NewUnauthorizedError создает ошибку 401 Unauthorized
func NewUnauthorizedError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Message: message,
		Err:     err,
	}
}

// NewForbiddenError создает ошибку 403 Forbidden
func NewForbiddenError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Message: message,
		Err:     err,
	}
}

// NewBadGatewayError создает ошибку 502 Bad Gateway.
// Применяется когда API поставщика вернул транспортную ошибку
func NewBadGatewayError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusBadGateway,
		Message: message,
		Err:     err,
	}
}

// NewGatewayTimeoutError создает ошибку 504 Gateway Timeout.
// Применяется когда API поставщика не ответил за отведенное время
func NewGatewayTimeoutError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusGatewayTimeout,
		Message: message,
		Err:     err,
	}
}

// NewServiceUnavailableError создает ошибку 503 Service Unavailable
func NewServiceUnavailableError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusServiceUnavailable,
		Message: message,
		Err:     err,
	}
}

// WrapError оборачивает существующую ошибку с дополнительным сообщением.
// Если ошибка уже AppError, статус и контекст сохраняются. Иначе создается InternalError
func WrapError(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
			Context: appErr.Context,
		}
	}

	return NewInternalError(message, err)
}

// Проверка соответствия интерфейсу middleware.HTTPError живет в
// errors_interface_test.go, чтобы не создавать циклический импорт
