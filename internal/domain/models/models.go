// Package models содержит DTO серверного слоя: записи журнала,
// сводки состояния и тела запросов/ответов HTTP API.
package models

import "time"

// LogEntry запись журнала сервера. Канал таких записей читают
// GUI-окно и эндпоинт /api/logs/recent
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Endpoint  string    `json:"endpoint,omitempty"`
}

// ServerStats сводка состояния сервера для GUI и /api/system/stats
type ServerStats struct {
	IsRunning         bool      `json:"is_running"`
	TotalProducts     int       `json:"total_products"`
	PublishedProducts int       `json:"published_products"`
	ActiveJob         string    `json:"active_job,omitempty"`
	LastActivity      time.Time `json:"last_activity"`
}

// ErrorResponse стандартный ответ об ошибке
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ImportStartRequest запрос на запуск пакетного импорта.
// Inputs — список идентификаторов в любом поддерживаемом виде
// (pid, sku, URL товара). Если список пуст, импортируется выдача
// каталожного поиска по Query (не больше MaxItems позиций)
type ImportStartRequest struct {
	Inputs   []string `json:"inputs,omitempty"`
	Query    string   `json:"query,omitempty"`
	MaxItems int      `json:"max_items,omitempty"`
}

// SingleImportRequest запрос на синхронный импорт одного товара
type SingleImportRequest struct {
	Input string `json:"input"`
}

// PublishRequest смена флага публикации товара
type PublishRequest struct {
	Published bool `json:"published"`
}

// ClientErrorReport ошибка, присланная фронтендом для записи в журнал
type ClientErrorReport struct {
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Stack   string `json:"stack,omitempty"`
	URL     string `json:"url,omitempty"`
}
