//go:build ignore

package errors

import (
	"importserver/server/middleware"
)

// Проверка, что AppError реализует интерфейс middleware.HTTPError.
// Файл не компилируется в обычной сборке (build tag ignore),
// но пригоден для ручной проверки интерфейса
var _ middleware.HTTPError = (*AppError)(nil)
