package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDKey ключ для request ID в контексте
type RequestIDKey struct{}

// RequestIDMiddleware присваивает каждому запросу уникальный request ID.
// Если клиент прислал X-Request-ID, используется его значение
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}

		ctx := SetRequestID(r.Context(), reqID)

		// Возвращаем request ID клиенту для сквозной трассировки
		w.Header().Set("X-Request-ID", reqID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID извлекает request ID из контекста
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	reqID, ok := ctx.Value(RequestIDKey{}).(string)
	if !ok {
		return ""
	}
	return reqID
}

// SetRequestID устанавливает request ID в контекст
func SetRequestID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, RequestIDKey{}, reqID)
}
