package server

import (
	"net/http"
	"sync"
	"time"

	"importserver/catalog"
	"importserver/database"
	"importserver/eligibility"
	"importserver/images"
	"importserver/internal/config"
	"importserver/server/handlers"
	servermonitoring "importserver/server/monitoring"
	"importserver/server/services"
	"importserver/supplier"

	_ "github.com/mattn/go-sqlite3"
)

// Алиасы для обратной совместимости
type Config = config.Config

var LoadConfig = config.LoadConfig
var LoadPricingConfig = config.LoadPricingConfig
var SaveConfig = config.SaveConfig
var SaveConfigWithHistory = config.SaveConfigWithHistory

// Server HTTP сервер импорта каталога поставщика
type Server struct {
	catalogDB *database.CatalogDB
	serviceDB *database.ServiceDB
	config    *Config

	httpServer  *http.Server
	httpHandler http.Handler
	logChan     chan LogEntry

	// Пайплайн импорта: от идентификатора на входе до строки каталога
	tokenProvider  supplier.TokenProvider
	supplierClient *supplier.Client
	fetcher        *supplier.Fetcher
	imagePipeline  *images.Pipeline
	converter      *catalog.Converter
	gate           eligibility.Gate

	shutdownChan chan struct{}
	startTime    time.Time

	// Сервисы
	importService  *services.ImportService
	catalogService *services.CatalogService

	// Handlers
	productsHandler   *handlers.ProductsHandler
	configHandler     *handlers.ConfigHandler
	logsHandler       *handlers.LogsHandler
	monitoringHandler *handlers.MonitoringHandler
	imageProxyHandler *handlers.ImageProxyHandler

	// Мониторинг
	healthChecker    *servermonitoring.HealthChecker
	metricsCollector *servermonitoring.MetricsCollector

	handlerOnce    sync.Once
	handlerInitErr error
}

// GetLogChannel возвращает канал для получения логов
func (s *Server) GetLogChannel() <-chan LogEntry {
	return s.logChan
}

// GetConfig возвращает текущую конфигурацию сервера
func (s *Server) GetConfig() *Config {
	return s.config
}

// GetImportService возвращает контроллер заданий импорта
func (s *Server) GetImportService() *services.ImportService {
	return s.importService
}

// IsDemo работает ли клиент поставщика в демо-режиме
func (s *Server) IsDemo() bool {
	return s.supplierClient != nil && s.supplierClient.IsDemo()
}

// GetServerStats собирает сводку состояния для GUI и /api/system/stats
func (s *Server) GetServerStats() ServerStats {
	stats := ServerStats{
		IsRunning:    true,
		LastActivity: time.Now(),
	}

	if catalogStats, err := s.catalogDB.GetStats(); err == nil {
		stats.TotalProducts = catalogStats.Total
		stats.PublishedProducts = catalogStats.Published
	}

	if s.importService != nil {
		if st := s.importService.GetStatus(); st.IsRunning {
			stats.ActiveJob = st.JobID
		}
	}

	return stats
}

// startStaleJobSweeper запускает фоновую задачу, помечающую зависшие
// после аварийного рестарта задания как failed: их блокировки уже
// протухли, а строки import_jobs так и остались в running
func (s *Server) startStaleJobSweeper() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			count, err := s.serviceDB.MarkAbandonedImportJobs(time.Hour)
			if err != nil {
				s.logErrorf("Error sweeping stale jobs: %v", err)
			} else if count > 0 {
				s.logWarnf("Marked %d abandoned import jobs as failed", count)
			}
		case <-s.shutdownChan:
			return
		}
	}
}
