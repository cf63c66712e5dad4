package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"importserver/catalog"
	"importserver/database"
	"importserver/internal/config"
)

// ConfigHandler обработчик для управления конфигурацией приложения
type ConfigHandler struct {
	serviceDB *database.ServiceDB
}

// NewConfigHandler создает новый обработчик конфигурации
func NewConfigHandler(serviceDB *database.ServiceDB) *ConfigHandler {
	return &ConfigHandler{
		serviceDB: serviceDB,
	}
}

// HandleGetConfig возвращает текущую конфигурацию приложения
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	if h.serviceDB == nil {
		log.Printf("[Config] Service database not available")
		http.Error(w, "Service database not available", http.StatusServiceUnavailable)
		return
	}

	// Загружаем конфигурацию из БД
	cfg, err := config.LoadConfig(h.serviceDB)
	if err != nil {
		log.Printf("[Config] Error loading config: %v", err)
		http.Error(w, fmt.Sprintf("Failed to load config: %v", err), http.StatusInternalServerError)
		return
	}

	log.Printf("[Config] Configuration retrieved (full)")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		log.Printf("[Config] Error encoding config: %v", err)
		http.Error(w, fmt.Sprintf("Failed to encode config: %v", err), http.StatusInternalServerError)
		return
	}
}

// HandleUpdateConfig обновляет конфигурацию приложения
func (h *ConfigHandler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if h.serviceDB == nil {
		http.Error(w, "Service database not available", http.StatusServiceUnavailable)
		return
	}

	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Загружаем текущую конфигурацию для сравнения
	oldCfg, _ := config.LoadConfig(h.serviceDB)

	var cfg config.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		log.Printf("[Config] Error decoding config: %v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	// Валидация конфигурации
	if err := cfg.Validate(); err != nil {
		log.Printf("[Config] Validation failed: %v", err)
		http.Error(w, fmt.Sprintf("Invalid configuration: %v", err), http.StatusBadRequest)
		return
	}

	// Логируем изменения конфигурации
	if oldCfg != nil {
		h.logConfigChanges(oldCfg, &cfg)
	}

	// Получаем информацию о пользователе из заголовков (если есть авторизация)
	changedBy := r.Header.Get("X-User-Id")
	if changedBy == "" {
		changedBy = r.RemoteAddr // Fallback на IP адрес
	}

	// Получаем причину изменения из запроса (опционально)
	changeReason := r.URL.Query().Get("reason")

	// Сохраняем конфигурацию в БД с историей
	if err := config.SaveConfigWithHistory(&cfg, h.serviceDB, changedBy, changeReason); err != nil {
		log.Printf("[Config] Error saving config: %v", err)
		http.Error(w, fmt.Sprintf("Failed to save config: %v", err), http.StatusInternalServerError)
		return
	}

	log.Printf("[Config] Configuration updated successfully")

	// Возвращаем обновленную конфигурацию
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		log.Printf("[Config] Error encoding config: %v", err)
	}
}

// logConfigChanges логирует изменения в конфигурации
func (h *ConfigHandler) logConfigChanges(oldCfg, newCfg *config.Config) {
	var changes []string

	// Сравниваем основные поля
	if oldCfg.Port != newCfg.Port {
		changes = append(changes, fmt.Sprintf("port: %s -> %s", oldCfg.Port, newCfg.Port))
	}
	if oldCfg.CatalogDatabasePath != newCfg.CatalogDatabasePath {
		changes = append(changes, fmt.Sprintf("catalog_database_path: %s -> %s",
			oldCfg.CatalogDatabasePath, newCfg.CatalogDatabasePath))
	}
	if oldCfg.ServiceDatabasePath != newCfg.ServiceDatabasePath {
		changes = append(changes, fmt.Sprintf("service_database_path: %s -> %s",
			oldCfg.ServiceDatabasePath, newCfg.ServiceDatabasePath))
	}
	if oldCfg.SupplierEmail != newCfg.SupplierEmail {
		changes = append(changes, fmt.Sprintf("supplier_email: %s -> %s", oldCfg.SupplierEmail, newCfg.SupplierEmail))
	}
	if oldCfg.SupplierBaseURL != newCfg.SupplierBaseURL {
		changes = append(changes, fmt.Sprintf("supplier_base_url: %s -> %s",
			oldCfg.SupplierBaseURL, newCfg.SupplierBaseURL))
	}
	if oldCfg.SupplierTimeout != newCfg.SupplierTimeout {
		changes = append(changes, fmt.Sprintf("supplier_timeout: %s -> %s",
			oldCfg.SupplierTimeout, newCfg.SupplierTimeout))
	}
	if oldCfg.SupplierRateLimit != newCfg.SupplierRateLimit {
		changes = append(changes, fmt.Sprintf("supplier_rate_limit_per_sec: %.2f -> %.2f",
			oldCfg.SupplierRateLimit, newCfg.SupplierRateLimit))
	}
	if oldCfg.SupplierMaxAttempts != newCfg.SupplierMaxAttempts {
		changes = append(changes, fmt.Sprintf("supplier_max_attempts: %d -> %d",
			oldCfg.SupplierMaxAttempts, newCfg.SupplierMaxAttempts))
	}
	if oldCfg.TokenCachePath != newCfg.TokenCachePath {
		changes = append(changes, fmt.Sprintf("token_cache_path: %s -> %s",
			oldCfg.TokenCachePath, newCfg.TokenCachePath))
	}
	if oldCfg.MediaCacheDir != newCfg.MediaCacheDir {
		changes = append(changes, fmt.Sprintf("media_cache_dir: %s -> %s", oldCfg.MediaCacheDir, newCfg.MediaCacheDir))
	}
	if oldCfg.ImageBaseHost != newCfg.ImageBaseHost {
		changes = append(changes, fmt.Sprintf("image_base_host: %s -> %s", oldCfg.ImageBaseHost, newCfg.ImageBaseHost))
	}
	if oldCfg.MaxGallery != newCfg.MaxGallery {
		changes = append(changes, fmt.Sprintf("max_gallery: %d -> %d", oldCfg.MaxGallery, newCfg.MaxGallery))
	}
	if oldCfg.ImageRateLimit != newCfg.ImageRateLimit {
		changes = append(changes, fmt.Sprintf("image_rate_limit_per_sec: %.2f -> %.2f",
			oldCfg.ImageRateLimit, newCfg.ImageRateLimit))
	}
	if oldCfg.ImageTimeout != newCfg.ImageTimeout {
		changes = append(changes, fmt.Sprintf("image_timeout: %s -> %s", oldCfg.ImageTimeout, newCfg.ImageTimeout))
	}
	if oldCfg.JobWorkers != newCfg.JobWorkers {
		changes = append(changes, fmt.Sprintf("job_workers: %d -> %d", oldCfg.JobWorkers, newCfg.JobWorkers))
	}
	if oldCfg.JobCheckpointEvery != newCfg.JobCheckpointEvery {
		changes = append(changes, fmt.Sprintf("job_checkpoint_every: %d -> %d",
			oldCfg.JobCheckpointEvery, newCfg.JobCheckpointEvery))
	}
	if oldCfg.MaxOpenConns != newCfg.MaxOpenConns {
		changes = append(changes, fmt.Sprintf("max_open_conns: %d -> %d", oldCfg.MaxOpenConns, newCfg.MaxOpenConns))
	}
	if oldCfg.MaxIdleConns != newCfg.MaxIdleConns {
		changes = append(changes, fmt.Sprintf("max_idle_conns: %d -> %d", oldCfg.MaxIdleConns, newCfg.MaxIdleConns))
	}
	if oldCfg.ConnMaxLifetime != newCfg.ConnMaxLifetime {
		changes = append(changes, fmt.Sprintf("conn_max_lifetime: %s -> %s",
			oldCfg.ConnMaxLifetime, newCfg.ConnMaxLifetime))
	}
	if oldCfg.LogBufferSize != newCfg.LogBufferSize {
		changes = append(changes, fmt.Sprintf("log_buffer_size: %d -> %d", oldCfg.LogBufferSize, newCfg.LogBufferSize))
	}
	if oldCfg.LogLevel != newCfg.LogLevel {
		changes = append(changes, fmt.Sprintf("log_level: %s -> %s", oldCfg.LogLevel, newCfg.LogLevel))
	}

	// Проверяем изменения пароля поставщика (только факт изменения, не значение)
	if oldCfg.SupplierPassword != newCfg.SupplierPassword {
		oldHasPassword := oldCfg.SupplierPassword != ""
		newHasPassword := newCfg.SupplierPassword != ""
		if oldHasPassword != newHasPassword {
			changes = append(changes, fmt.Sprintf("supplier_password: %v -> %v", oldHasPassword, newHasPassword))
		} else {
			changes = append(changes, "supplier_password: [changed]")
		}
	}

	// Проверяем изменения в ценообразовании
	if oldCfg.Pricing != nil && newCfg.Pricing != nil {
		if oldCfg.Pricing.ShippingBuffer != newCfg.Pricing.ShippingBuffer {
			changes = append(changes, fmt.Sprintf("pricing.shipping_buffer: %.2f -> %.2f",
				oldCfg.Pricing.ShippingBuffer, newCfg.Pricing.ShippingBuffer))
		}
		if oldCfg.Pricing.FallbackMultiplier != newCfg.Pricing.FallbackMultiplier {
			changes = append(changes, fmt.Sprintf("pricing.fallback_multiplier: %.2f -> %.2f",
				oldCfg.Pricing.FallbackMultiplier, newCfg.Pricing.FallbackMultiplier))
		}
		if len(oldCfg.Pricing.Brackets) != len(newCfg.Pricing.Brackets) {
			changes = append(changes, fmt.Sprintf("pricing.brackets: %d -> %d",
				len(oldCfg.Pricing.Brackets), len(newCfg.Pricing.Brackets)))
		}
	}

	if len(changes) > 0 {
		log.Printf("[Config] Configuration changes detected: %s", strings.Join(changes, ", "))
	} else {
		log.Printf("[Config] Configuration update requested but no changes detected")
	}
}

// HandleGetConfigSafe возвращает конфигурацию без чувствительных данных (учетные данные поставщика)
func (h *ConfigHandler) HandleGetConfigSafe(w http.ResponseWriter, r *http.Request) {
	if h.serviceDB == nil {
		log.Printf("[Config] Service database not available")
		http.Error(w, "Service database not available", http.StatusServiceUnavailable)
		return
	}

	// Загружаем конфигурацию из БД
	cfg, err := config.LoadConfig(h.serviceDB)
	if err != nil {
		log.Printf("[Config] Error loading config: %v", err)
		http.Error(w, fmt.Sprintf("Failed to load config: %v", err), http.StatusInternalServerError)
		return
	}

	// Создаем безопасную копию без пароля поставщика
	safeConfig := struct {
		Port                string                 `json:"port"`
		UseGUI              bool                   `json:"use_gui"`
		CatalogDatabasePath string                 `json:"catalog_database_path"`
		ServiceDatabasePath string                 `json:"service_database_path"`
		SupplierEmail       string                 `json:"supplier_email"`
		SupplierBaseURL     string                 `json:"supplier_base_url"`
		SupplierTimeout     string                 `json:"supplier_timeout"`
		SupplierRateLimit   float64                `json:"supplier_rate_limit_per_sec"`
		SupplierMaxAttempts int                    `json:"supplier_max_attempts"`
		TokenCachePath      string                 `json:"token_cache_path"`
		MediaCacheDir       string                 `json:"media_cache_dir"`
		ImageBaseHost       string                 `json:"image_base_host"`
		MaxGallery          int                    `json:"max_gallery"`
		ImageRateLimit      float64                `json:"image_rate_limit_per_sec"`
		ImageTimeout        string                 `json:"image_timeout"`
		Pricing             *catalog.PricingConfig `json:"pricing"`
		JobWorkers          int                    `json:"job_workers"`
		JobCheckpointEvery  int                    `json:"job_checkpoint_every"`
		MaxOpenConns        int                    `json:"max_open_conns"`
		MaxIdleConns        int                    `json:"max_idle_conns"`
		ConnMaxLifetime     string                 `json:"conn_max_lifetime"`
		LogBufferSize       int                    `json:"log_buffer_size"`
		LogLevel            string                 `json:"log_level"`
		HasSupplierPassword bool                   `json:"has_supplier_password"`
	}{
		Port:                cfg.Port,
		UseGUI:              cfg.UseGUI,
		CatalogDatabasePath: cfg.CatalogDatabasePath,
		ServiceDatabasePath: cfg.ServiceDatabasePath,
		SupplierEmail:       cfg.SupplierEmail,
		SupplierBaseURL:     cfg.SupplierBaseURL,
		SupplierTimeout:     cfg.SupplierTimeout.String(),
		SupplierRateLimit:   cfg.SupplierRateLimit,
		SupplierMaxAttempts: cfg.SupplierMaxAttempts,
		TokenCachePath:      cfg.TokenCachePath,
		MediaCacheDir:       cfg.MediaCacheDir,
		ImageBaseHost:       cfg.ImageBaseHost,
		MaxGallery:          cfg.MaxGallery,
		ImageRateLimit:      cfg.ImageRateLimit,
		ImageTimeout:        cfg.ImageTimeout.String(),
		Pricing:             cfg.Pricing,
		JobWorkers:          cfg.JobWorkers,
		JobCheckpointEvery:  cfg.JobCheckpointEvery,
		MaxOpenConns:        cfg.MaxOpenConns,
		MaxIdleConns:        cfg.MaxIdleConns,
		ConnMaxLifetime:     cfg.ConnMaxLifetime.String(),
		LogBufferSize:       cfg.LogBufferSize,
		LogLevel:            cfg.LogLevel,
		HasSupplierPassword: cfg.SupplierPassword != "",
	}

	log.Printf("[Config] Configuration retrieved (safe)")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(safeConfig); err != nil {
		log.Printf("[Config] Error encoding safe config: %v", err)
		http.Error(w, fmt.Sprintf("Failed to encode config: %v", err), http.StatusInternalServerError)
		return
	}
}

// HandleGetConfigHistory возвращает историю изменений конфигурации
func (h *ConfigHandler) HandleGetConfigHistory(w http.ResponseWriter, r *http.Request) {
	if h.serviceDB == nil {
		log.Printf("[Config] Service database not available")
		http.Error(w, "Service database not available", http.StatusServiceUnavailable)
		return
	}

	// Получаем лимит из query параметра
	limit, err := ValidateIntParam(r, "limit", 10, 1, 200)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	history, err := h.serviceDB.GetAppConfigHistory(limit)
	if err != nil {
		log.Printf("[Config] Error loading config history: %v", err)
		http.Error(w, fmt.Sprintf("Failed to load config history: %v", err), http.StatusInternalServerError)
		return
	}

	// Получаем текущую версию
	currentVersion, err := h.serviceDB.GetAppConfigVersion()
	if err != nil {
		log.Printf("[Config] Warning: failed to get current version: %v", err)
	}

	response := map[string]interface{}{
		"current_version": currentVersion,
		"history":         history,
		"count":           len(history),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("[Config] Error encoding config history: %v", err)
		http.Error(w, fmt.Sprintf("Failed to encode config history: %v", err), http.StatusInternalServerError)
		return
	}
}
