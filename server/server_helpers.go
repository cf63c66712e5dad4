package server

// Файл содержит вспомогательные методы Server, извлеченные из server.go
// для сокращения размера server.go

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"importserver/server/middleware"
)

func (s *Server) log(entry LogEntry) {
	select {
	case s.logChan <- entry:
	default:
		// Если канал полон, пропускаем запись
	}

	// Копия уходит в кольцевой буфер для /api/logs/recent
	if s.logsHandler != nil {
		s.logsHandler.Append(entry)
	}

	// Форматируем уровень логирования с эмодзи для лучшей читаемости
	levelIcon := ""
	switch entry.Level {
	case "ERROR":
		levelIcon = "✗"
	case "WARN":
		levelIcon = "⚠"
	case "INFO":
		levelIcon = "ℹ"
	case "DEBUG":
		levelIcon = "🔍"
	default:
		levelIcon = "•"
	}

	log.Printf("%s [%s] %s: %s", levelIcon, entry.Level, entry.Timestamp.Format("15:04:05"), entry.Message)
}

// logError логирует ошибку с уровнем ERROR
func (s *Server) logError(message string, endpoint string) {
	s.log(LogEntry{
		Timestamp: time.Now(),
		Level:     "ERROR",
		Message:   message,
		Endpoint:  endpoint,
	})
}

// logErrorf логирует ошибку с форматированием
func (s *Server) logErrorf(format string, args ...interface{}) {
	s.log(LogEntry{
		Timestamp: time.Now(),
		Level:     "ERROR",
		Message:   fmt.Sprintf(format, args...),
	})
}

// logWarn логирует предупреждение
func (s *Server) logWarn(message string, endpoint string) {
	s.log(LogEntry{
		Timestamp: time.Now(),
		Level:     "WARN",
		Message:   message,
		Endpoint:  endpoint,
	})
}

// logWarnf логирует предупреждение с форматированием
func (s *Server) logWarnf(format string, args ...interface{}) {
	s.log(LogEntry{
		Timestamp: time.Now(),
		Level:     "WARN",
		Message:   fmt.Sprintf(format, args...),
	})
}

// logInfo логирует информационное сообщение
func (s *Server) logInfo(message string, endpoint string) {
	s.log(LogEntry{
		Timestamp: time.Now(),
		Level:     "INFO",
		Message:   message,
		Endpoint:  endpoint,
	})
}

// logInfof логирует информационное сообщение с форматированием
func (s *Server) logInfof(format string, args ...interface{}) {
	s.log(LogEntry{
		Timestamp: time.Now(),
		Level:     "INFO",
		Message:   fmt.Sprintf(format, args...),
	})
}

func (s *Server) handleHTTPError(w http.ResponseWriter, r *http.Request, err error) {
	middleware.HandleHTTPError(w, r, err)
}

// writeJSONResponse записывает JSON ответ
func (s *Server) writeJSONResponse(w http.ResponseWriter, r *http.Request, data interface{}, statusCode int) {
	middleware.WriteJSONResponse(w, r, data, statusCode)
}

// writeJSONError записывает JSON ошибку
func (s *Server) writeJSONError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	middleware.WriteJSONError(w, r, message, statusCode)
}
