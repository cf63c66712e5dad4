package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	apperrors "importserver/server/errors"
	"importserver/server/middleware"
)

var (
	// Logger глобальный структурированный логгер
	Logger *slog.Logger
)

func init() {
	// Инициализируем структурированный логгер в формате JSON
	opts := &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true, // Добавляем информацию об источнике (файл, строка)
	}

	// Используем JSON handler для структурированного логирования
	Logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// LogRequest логирует информацию о входящем HTTP запросе
func LogRequest(r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	Logger.Info("Request received",
		"method", r.Method,
		"path", r.URL.Path,
		"query", r.URL.RawQuery,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
		"request_id", reqID,
	)
}

// LogError логирует ошибку с контекстом из запроса
func LogError(ctx context.Context, err error, msg string, attrs ...any) {
	reqID := middleware.GetRequestID(ctx)

	attrs = append(attrs, "error", err, "request_id", reqID)

	Logger.Error(msg, attrs...)
}

// LogErrorf логирует ошибку с форматированным сообщением
func LogErrorf(ctx context.Context, err error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	LogError(ctx, err, msg)
}

// LogWarn логирует предупреждение
func LogWarn(ctx context.Context, msg string, attrs ...any) {
	reqID := middleware.GetRequestID(ctx)
	attrs = append(attrs, "request_id", reqID)
	Logger.Warn(msg, attrs...)
}

// LogInfo логирует информационное сообщение
func LogInfo(ctx context.Context, msg string, attrs ...any) {
	reqID := middleware.GetRequestID(ctx)
	attrs = append(attrs, "request_id", reqID)
	Logger.Info(msg, attrs...)
}

// LogDebug логирует отладочное сообщение
func LogDebug(ctx context.Context, msg string, attrs ...any) {
	reqID := middleware.GetRequestID(ctx)
	attrs = append(attrs, "request_id", reqID)
	Logger.Debug(msg, attrs...)
}

// LogHTTPError логирует HTTP ошибку с полным контекстом
func LogHTTPError(r *http.Request, err error, statusCode int) {
	reqID := middleware.GetRequestID(r.Context())

	var appErr *apperrors.AppError
	errorMsg := err.Error()
	if errors.As(err, &appErr) {
		Logger.Error("HTTP error",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", statusCode,
			"error", appErr.Err,
			"user_message", appErr.Message,
			"context", appErr.Context,
			"request_id", reqID,
		)
	} else {
		Logger.Error("HTTP error",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", statusCode,
			"error", err,
			"error_message", errorMsg,
			"request_id", reqID,
		)
	}
}

// LogDuration логирует продолжительность выполнения операции
func LogDuration(ctx context.Context, operation string, duration time.Duration, attrs ...any) {
	reqID := middleware.GetRequestID(ctx)
	attrs = append(attrs, "request_id", reqID, "duration_ms", duration.Milliseconds())
	Logger.Info(operation+" completed", attrs...)
}

// --- Специализированные функции логирования для импорта ---

// LogImportStart логирует начало задания импорта
func LogImportStart(jobID, jobType string, itemCount int) {
	Logger.Info("Import started",
		"job_id", jobID,
		"job_type", jobType,
		"item_count", itemCount,
	)
}

// LogImportProgress логирует прогресс задания импорта
func LogImportProgress(jobID string, processed, total, success, failed int) {
	Logger.Info("Import progress",
		"job_id", jobID,
		"processed", processed,
		"total", total,
		"success", success,
		"failed", failed,
		"progress_percent", float64(processed)/float64(total)*100,
	)
}

// LogImportComplete логирует завершение задания импорта
func LogImportComplete(jobID string, processed, success, failed int, duration time.Duration) {
	Logger.Info("Import completed",
		"job_id", jobID,
		"processed", processed,
		"success", success,
		"failed", failed,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogImportStopped логирует досрочную остановку задания импорта
func LogImportStopped(jobID, reason string, processed int) {
	Logger.Info("Import stopped",
		"job_id", jobID,
		"reason", reason,
		"processed_before_stop", processed,
	)
}

// LogImportItemError логирует ошибку обработки одной позиции
func LogImportItemError(jobID, input string, err error) {
	Logger.Error("Import item error",
		"job_id", jobID,
		"input", input,
		"error", err,
	)
}

// LogImportPanic логирует панику при обработке позиции
func LogImportPanic(jobID, input string, recovered interface{}, stack string) {
	Logger.Error("Import item panic",
		"job_id", jobID,
		"input", input,
		"recovered", recovered,
		"stack_trace", stack,
	)
}
