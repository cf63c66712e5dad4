package server

import (
	"importserver/internal/domain/models"
)

// Алиасы для обратной совместимости
// Все типы теперь в internal/domain/models
type (
	LogEntry            = models.LogEntry
	ServerStats         = models.ServerStats
	ErrorResponse       = models.ErrorResponse
	ImportStartRequest  = models.ImportStartRequest
	SingleImportRequest = models.SingleImportRequest
	PublishRequest      = models.PublishRequest
	ClientErrorReport   = models.ClientErrorReport
)
