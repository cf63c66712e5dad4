package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"importserver/server/handlers"
	"importserver/server/middleware"
)

// Start запускает HTTP сервер
func (s *Server) Start() error {
	handler, err := s.ensureHTTPHandler()
	if err != nil {
		return err
	}

	// WriteTimeout с запасом: выгрузка каталога в xlsx на большом
	// ассортименте занимает больше обычного запроса
	addr := fmt.Sprintf(":%s", s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Сервер запускается на порту %s", s.config.Port)

	// Запускаем фоновые задачи
	go s.startStaleJobSweeper()

	log.Printf("Starting HTTP server on %s...", s.httpServer.Addr)
	log.Printf("API доступно по адресу: http://localhost%s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("✗ КРИТИЧЕСКАЯ ОШИБКА: Не удалось запустить HTTP сервер на %s: %v", s.httpServer.Addr, err)
	}

	return nil
}

func (s *Server) ensureHTTPHandler() (http.Handler, error) {
	s.handlerOnce.Do(func() {
		handler, err := s.buildHTTPHandler()
		if err != nil {
			log.Printf("[ensureHTTPHandler] ✗ ОШИБКА при создании HTTP handler: %v", err)
			s.handlerInitErr = err
			return
		}
		s.httpHandler = handler
	})

	if s.handlerInitErr != nil {
		return nil, s.handlerInitErr
	}

	if s.httpHandler == nil {
		return nil, fmt.Errorf("httpHandler is nil")
	}

	return s.httpHandler, nil
}

func (s *Server) buildHTTPHandler() (http.Handler, error) {
	// Устанавливаем режим Gin: release для продакшена, debug для разработки
	// Можно переопределить через переменную окружения GIN_MODE
	if ginMode := os.Getenv("GIN_MODE"); ginMode == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Применяем middleware
	router.Use(middleware.GinRequestIDMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinGzipMiddleware())
	router.Use(middleware.GinLoggerMiddleware())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.metricsCollector.RecordHTTPRequest(c.Writer.Status() < 500, time.Since(start))
	})
	router.Use(gin.Recovery())

	// Регистрируем Swagger
	handlers.RegisterSwaggerRoutes(router)

	// Регистрируем Gin handlers
	s.registerGinHandlers(router)

	// Страховочный mux для обработчиков вне gin-групп
	mux := http.NewServeMux()
	s.registerLegacyHandlers(mux)

	router.NoRoute(func(c *gin.Context) {
		mux.ServeHTTP(c.Writer, c.Request)
	})

	return router, nil
}

// ServeHTTP реализует http.Handler для тестов и вспомогательных утилит
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler, err := s.ensureHTTPHandler()
	if err != nil {
		http.Error(w, "server is not initialized", http.StatusInternalServerError)
		return
	}

	handler.ServeHTTP(w, r)
}

// Shutdown останавливает HTTP сервер gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	log.Println("Initiating graceful shutdown...")

	// Останавливаем задание импорта, если оно идет
	s.stopActiveImport()

	// Останавливаем фоновые задачи
	close(s.shutdownChan)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}

	log.Println("Graceful shutdown completed")
	return nil
}

// stopActiveImport останавливает текущее задание импорта
// Вызывается при graceful shutdown для предотвращения утечки горутин
func (s *Server) stopActiveImport() {
	if s.importService == nil {
		return
	}
	if s.importService.Stop() {
		log.Println("Active import job stopped")
	}
}

// registerGinHandlers регистрирует все Gin handlers
func (s *Server) registerGinHandlers(router *gin.Engine) {
	// Health check endpoint - простой эндпоинт без зависимостей
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "import-server",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// Проксирование изображений поставщика для витрины
	if s.imageProxyHandler != nil {
		router.GET("/image-proxy", httpHandlerToGin(s.imageProxyHandler.HandleImageProxy))
	}

	// Скачанные изображения каталога
	router.Static("/media", s.config.MediaCacheDir)

	api := router.Group("/api")

	// Import API
	importAPI := api.Group("/import")
	{
		importAPI.POST("/start", httpHandlerToGin(s.handleImportStart))
		importAPI.POST("/single", httpHandlerToGin(s.handleImportSingle))
		importAPI.POST("/upload", httpHandlerToGin(s.handleImportUpload))
		importAPI.GET("/status", httpHandlerToGin(s.handleImportStatus))
		importAPI.POST("/cancel", httpHandlerToGin(s.handleImportCancel))
		importAPI.GET("/jobs", httpHandlerToGin(s.handleImportJobs))
		importAPI.GET("/resolve", httpHandlerToGin(s.handleImportResolve))
		importAPI.POST("/price-sync", httpHandlerToGin(s.handlePriceSyncStart))
	}

	// Products API
	if s.productsHandler != nil {
		productsAPI := api.Group("/products")
		{
			productsAPI.GET("", s.productsHandler.HandleListProductsGin)
			productsAPI.GET("/stats", s.productsHandler.HandleProductStatsGin)
			productsAPI.GET("/export", s.productsHandler.HandleExportProductsGin)
			productsAPI.GET("/:id", s.productsHandler.HandleGetProductGin)
			productsAPI.DELETE("/:id", s.productsHandler.HandleDeleteProductGin)
			productsAPI.POST("/:id/publish", s.productsHandler.HandlePublishProductGin)
		}
	}

	// Monitoring API
	if s.monitoringHandler != nil {
		monitoringAPI := api.Group("/monitoring")
		{
			monitoringAPI.GET("/metrics", httpHandlerToGin(s.monitoringHandler.HandleMonitoringMetrics))
			monitoringAPI.GET("/health", httpHandlerToGin(s.monitoringHandler.HandleMonitoringHealth))
			monitoringAPI.GET("/events", httpHandlerToGin(s.monitoringHandler.HandleMonitoringEvents))
			monitoringAPI.GET("/supplier", httpHandlerToGin(s.handleSupplierStatus))
		}
	}

	// Logs API
	if s.logsHandler != nil {
		logsAPI := api.Group("/logs")
		{
			logsAPI.POST("/client-error", httpHandlerToGin(s.logsHandler.HandleClientError))
			logsAPI.GET("/recent", httpHandlerToGin(s.logsHandler.HandleRecentLogs))
		}
	}

	// System API
	systemAPI := api.Group("/system")
	{
		systemAPI.GET("/stats", httpHandlerToGin(s.handleSystemStats))
	}
}

// registerLegacyHandlers регистрирует legacy handlers в mux
func (s *Server) registerLegacyHandlers(mux *http.ServeMux) {
	// Config routes
	if s.configHandler != nil {
		mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				s.configHandler.HandleGetConfigSafe(w, r)
			} else if r.Method == http.MethodPut || r.Method == http.MethodPost {
				s.configHandler.HandleUpdateConfig(w, r)
			} else {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})
		mux.HandleFunc("/api/config/full", s.configHandler.HandleGetConfig)
		mux.HandleFunc("/api/config/history", s.configHandler.HandleGetConfigHistory)
	}

	// Monitoring fallback
	if s.monitoringHandler != nil {
		mux.HandleFunc("/api/monitoring/metrics", s.monitoringHandler.HandleMonitoringMetrics)
		mux.HandleFunc("/api/monitoring/health", s.monitoringHandler.HandleMonitoringHealth)
	}

	// Logs fallback
	if s.logsHandler != nil {
		mux.HandleFunc("/api/logs/client-error", s.logsHandler.HandleClientError)
	}
}

func httpHandlerToGin(handler http.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.Request

		// Прокидываем все path-параметры Gin в контекст стандартного http.Request,
		// чтобы legacy handlers могли получать их через r.Context().Value(...)
		if len(c.Params) > 0 {
			ctx := req.Context()
			for _, param := range c.Params {
				ctx = context.WithValue(ctx, param.Key, param.Value)
			}
			req = req.WithContext(ctx)
		}

		handler(c.Writer, req)
	}
}
