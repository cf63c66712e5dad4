package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"importserver/catalog"
	"importserver/database"
	"importserver/eligibility"
	"importserver/images"
	"importserver/server/handlers"
	"importserver/server/middleware"
	servermonitoring "importserver/server/monitoring"
	"importserver/server/services"
	"importserver/supplier"
)

// Version версия сервера, попадает в health check и swagger
const Version = "1.0.0"

// NewServerWithConfig создает сервер со всеми компонентами пайплайна импорта.
// Без учетных данных поставщика клиент работает в демо-режиме: выдает
// сгенерированный каталог и не ходит в сеть
func NewServerWithConfig(catalogDB *database.CatalogDB, serviceDB *database.ServiceDB, config *Config) *Server {
	// Клиент поставщика и цепочка подбора карточек
	supplierCfg := config.SupplierConfig()
	tokenProvider := supplier.NewCachingTokenProvider(supplierCfg)
	supplierClient := supplier.NewClient(supplierCfg, tokenProvider)
	fetcher := supplier.NewFetcher(supplierClient)

	if supplierClient.IsDemo() {
		log.Printf("⚠ Учетные данные поставщика не заданы, включен демо-режим")
	}

	// Пайплайн изображений. Демо-карточки ссылаются на вымышленные
	// адреса — сетевая валидация там бессмысленна
	imagesCfg := config.ImagesConfig()
	if supplierClient.IsDemo() {
		imagesCfg.SkipValidation = true
	}
	imagePipeline := images.NewPipeline(imagesCfg)

	// Конвертер с ценообразованием и гейт допуска
	pricing := catalog.DefaultPricingConfig()
	if config.Pricing != nil {
		pricing = *config.Pricing
	}
	converter := catalog.NewConverter(pricing)
	gate := eligibility.NewKeywordGate()

	// Сервисы
	importService := services.NewImportService(serviceDB, config.JobCheckpointEvery)
	catalogService := services.NewCatalogService(catalogDB)

	// Мониторинг
	middleware.InitErrorMetrics()
	metricsCollector := servermonitoring.NewMetricsCollector()
	healthChecker := servermonitoring.NewHealthChecker(Version, catalogDB.GetDB(), serviceDB)

	// Обработчики
	baseHandler := handlers.NewBaseHandlerFromMiddleware()
	productsHandler := handlers.NewProductsHandler(baseHandler, catalogService)
	configHandler := handlers.NewConfigHandler(serviceDB)
	logsHandler := handlers.NewLogsHandler(baseHandler, config.LogBufferSize)
	monitoringHandler := handlers.NewMonitoringHandler(baseHandler, healthChecker, metricsCollector)
	imageProxyHandler := handlers.NewImageProxyHandler(baseHandler, imagesCfg.UserAgent, imagesCfg.RequestTimeout)

	srv := &Server{
		catalogDB: catalogDB,
		serviceDB: serviceDB,
		config:    config,

		logChan: make(chan LogEntry, config.LogBufferSize),

		tokenProvider:  tokenProvider,
		supplierClient: supplierClient,
		fetcher:        fetcher,
		imagePipeline:  imagePipeline,
		converter:      converter,
		gate:           gate,

		shutdownChan: make(chan struct{}),
		startTime:    time.Now(),

		importService:  importService,
		catalogService: catalogService,

		productsHandler:   productsHandler,
		configHandler:     configHandler,
		logsHandler:       logsHandler,
		monitoringHandler: monitoringHandler,
		imageProxyHandler: imageProxyHandler,

		healthChecker:    healthChecker,
		metricsCollector: metricsCollector,
	}

	srv.registerHealthComponents()

	if err := srv.validateCriticalDependencies(); err != nil {
		log.Fatalf("Failed to validate critical dependencies: %v", err)
	}

	return srv
}

// registerHealthComponents добавляет проверки компонентов пайплайна импорта
// к базовым ping'ам обеих БД
func (s *Server) registerHealthComponents() {
	s.healthChecker.RegisterComponent("media_cache", func(ctx context.Context) servermonitoring.ComponentHealth {
		start := time.Now()
		health := servermonitoring.ComponentHealth{
			Name:      "media_cache",
			Status:    servermonitoring.HealthStatusHealthy,
			Timestamp: time.Now(),
		}
		probe := filepath.Join(s.config.MediaCacheDir, ".healthcheck")
		if err := os.MkdirAll(s.config.MediaCacheDir, 0o755); err != nil {
			health.Status = servermonitoring.HealthStatusUnhealthy
			health.Message = fmt.Sprintf("media cache dir is not available: %v", err)
		} else if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
			health.Status = servermonitoring.HealthStatusUnhealthy
			health.Message = fmt.Sprintf("media cache dir is not writable: %v", err)
		} else {
			os.Remove(probe)
		}
		health.Latency = time.Since(start)
		return health
	})

	s.healthChecker.RegisterComponent("supplier", func(ctx context.Context) servermonitoring.ComponentHealth {
		health := servermonitoring.ComponentHealth{
			Name:      "supplier",
			Status:    servermonitoring.HealthStatusHealthy,
			Timestamp: time.Now(),
		}
		if s.supplierClient.IsDemo() {
			health.Status = servermonitoring.HealthStatusDegraded
			health.Message = "demo mode: supplier credentials are not set"
			return health
		}
		details := s.supplierClient.BreakerDetails()
		if state, ok := details["state"].(string); ok && state != "closed" {
			health.Status = servermonitoring.HealthStatusDegraded
			health.Message = fmt.Sprintf("supplier circuit breaker is %s", state)
		}
		return health
	})
}

// validateCriticalDependencies проверяет, что все критические зависимости инициализированы
func (s *Server) validateCriticalDependencies() error {
	var missing []string

	if s.catalogDB == nil {
		missing = append(missing, "catalogDB")
	}
	if s.serviceDB == nil {
		missing = append(missing, "serviceDB")
	}
	if s.config == nil {
		missing = append(missing, "config")
	}
	if s.fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if s.imagePipeline == nil {
		missing = append(missing, "imagePipeline")
	}
	if s.converter == nil {
		missing = append(missing, "converter")
	}
	if s.importService == nil {
		missing = append(missing, "importService")
	}
	if s.productsHandler == nil {
		missing = append(missing, "productsHandler")
	}
	if s.configHandler == nil {
		missing = append(missing, "configHandler")
	}

	if len(missing) > 0 {
		return fmt.Errorf("critical dependencies are nil: %v", missing)
	}

	log.Printf("✓ Все критические зависимости валидированы успешно")
	return nil
}
