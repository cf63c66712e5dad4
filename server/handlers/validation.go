package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ValidationError представляет ошибку валидации
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ValidateIntParam валидирует целочисленный параметр из query string
func ValidateIntParam(r *http.Request, paramName string, defaultValue, min, max int) (int, error) {
	valueStr := r.URL.Query().Get(paramName)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, &ValidationError{
			Field:   paramName,
			Message: fmt.Sprintf("must be an integer, got: %s", valueStr),
		}
	}

	if min > 0 && value < min {
		return 0, &ValidationError{
			Field:   paramName,
			Message: fmt.Sprintf("must be at least %d, got: %d", min, value),
		}
	}

	if max > 0 && value > max {
		return 0, &ValidationError{
			Field:   paramName,
			Message: fmt.Sprintf("must be at most %d, got: %d", max, value),
		}
	}

	return value, nil
}

// ValidateEnumParam валидирует параметр из списка допустимых значений
func ValidateEnumParam(value, paramName string, allowedValues []string, required bool) error {
	if required && value == "" {
		return &ValidationError{
			Field:   paramName,
			Message: "is required",
		}
	}

	if value == "" {
		return nil // Пустое значение разрешено, если не требуется
	}

	for _, allowed := range allowedValues {
		if strings.EqualFold(value, allowed) {
			return nil
		}
	}

	return &ValidationError{
		Field:   paramName,
		Message: fmt.Sprintf("must be one of: %s, got: %s", strings.Join(allowedValues, ", "), value),
	}
}
