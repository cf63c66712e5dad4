// Package config загружает конфигурацию сервера импорта: сначала из
// сервисной БД (персистентные правки оператора), при её отсутствии
// или невалидности — из переменных окружения.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"importserver/catalog"
	"importserver/database"
	"importserver/images"
	"importserver/supplier"
)

// Config конфигурация сервера импорта
type Config struct {
	// Сервер
	Port   string `json:"port"`
	UseGUI bool   `json:"use_gui"`

	// Базы данных
	CatalogDatabasePath string `json:"catalog_database_path"`
	ServiceDatabasePath string `json:"service_database_path"`

	// API поставщика; пустые учетные данные включают демо-режим
	SupplierEmail       string        `json:"supplier_email"`
	SupplierPassword    string        `json:"supplier_password"`
	SupplierBaseURL     string        `json:"supplier_base_url"`
	SupplierTimeout     time.Duration `json:"supplier_timeout"`
	SupplierRateLimit   float64       `json:"supplier_rate_limit_per_sec"`
	SupplierMaxAttempts int           `json:"supplier_max_attempts"`
	TokenCachePath      string        `json:"token_cache_path"`

	// Пайплайн изображений
	MediaCacheDir  string        `json:"media_cache_dir"`
	ImageBaseHost  string        `json:"image_base_host"`
	MaxGallery     int           `json:"max_gallery"`
	ImageRateLimit float64       `json:"image_rate_limit_per_sec"`
	ImageTimeout   time.Duration `json:"image_timeout"`

	// Ценообразование
	Pricing *catalog.PricingConfig `json:"pricing"`

	// Фоновые задания
	JobWorkers         int `json:"job_workers"`
	JobCheckpointEvery int `json:"job_checkpoint_every"`

	// Connection pooling
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// Логирование
	LogBufferSize int    `json:"log_buffer_size"`
	LogLevel      string `json:"log_level"`
}

// LoadConfig загружает конфигурацию из сервисной БД (если serviceDB передан)
// или из переменных окружения
func LoadConfig(serviceDB ...*database.ServiceDB) (*Config, error) {
	// Пытаемся загрузить из БД, если передан serviceDB
	if len(serviceDB) > 0 && serviceDB[0] != nil {
		configJSONStr, err := serviceDB[0].GetAppConfig()
		if err == nil && configJSONStr != "" {
			var cfgJSON configJSON
			if err := json.Unmarshal([]byte(configJSONStr), &cfgJSON); err == nil {
				config := cfgJSON.toConfig()

				log.Printf("Config loaded from service database")
				if err := config.Validate(); err != nil {
					log.Printf("Invalid config from DB, falling back to env: %v", err)
				} else {
					return config, nil
				}
			} else {
				log.Printf("Failed to parse config from DB, falling back to env: %v", err)
			}
		}
	}

	// Fallback на переменные окружения
	config := &Config{
		// Сервер
		Port:   getEnv("SERVER_PORT", "8077"),
		UseGUI: getEnv("USE_GUI", "false") == "true",

		// Базы данных
		CatalogDatabasePath: getEnv("CATALOG_DATABASE_PATH", "data/catalog.db"),
		ServiceDatabasePath: getEnv("SERVICE_DATABASE_PATH", "data/service.db"),

		// API поставщика
		SupplierEmail:       os.Getenv("CJ_EMAIL"),
		SupplierPassword:    os.Getenv("CJ_PASSWORD"),
		SupplierBaseURL:     getEnv("CJ_BASE_URL", supplier.DefaultBaseURL),
		SupplierTimeout:     getEnvDuration("CJ_TIMEOUT", 30*time.Second),
		SupplierRateLimit:   getEnvFloat("CJ_RATE_LIMIT_PER_SEC", 1.0),
		SupplierMaxAttempts: getEnvInt("CJ_MAX_ATTEMPTS", 3),
		TokenCachePath:      getEnv("CJ_TOKEN_CACHE_PATH", "data/cj_token.json"),

		// Пайплайн изображений
		MediaCacheDir:  getEnv("MEDIA_CACHE_DIR", "data/media"),
		ImageBaseHost:  getEnv("IMAGE_BASE_HOST", images.DefaultBaseHost),
		MaxGallery:     getEnvInt("IMAGE_MAX_GALLERY", 15),
		ImageRateLimit: getEnvFloat("IMAGE_RATE_LIMIT_PER_SEC", 4.0),
		ImageTimeout:   getEnvDuration("IMAGE_TIMEOUT", 15*time.Second),

		// Ценообразование
		Pricing: LoadPricingConfig(),

		// Фоновые задания
		JobWorkers:         getEnvInt("JOB_WORKERS", 4),
		JobCheckpointEvery: getEnvInt("JOB_CHECKPOINT_EVERY", 5),

		// Connection pooling
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 3),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),

		// Логирование
		LogBufferSize: getEnvInt("LOG_BUFFER_SIZE", 100),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// LoadPricingConfig загружает правила ценообразования: встроенные
// значения с точечными переопределениями из окружения.
// PRICING_BRACKETS принимает JSON-массив корзин наценки
func LoadPricingConfig() *catalog.PricingConfig {
	cfg := catalog.DefaultPricingConfig()

	cfg.ShippingBuffer = getEnvFloat("PRICING_SHIPPING_BUFFER", cfg.ShippingBuffer)
	cfg.MinProfit = getEnvFloat("PRICING_MIN_PROFIT", cfg.MinProfit)
	cfg.MaxMultiplier = getEnvFloat("PRICING_MAX_MULTIPLIER", cfg.MaxMultiplier)
	cfg.MinSalePrice = getEnvFloat("PRICING_MIN_SALE_PRICE", cfg.MinSalePrice)

	if raw := os.Getenv("PRICING_BRACKETS"); raw != "" {
		var brackets []catalog.PriceBracket
		if err := json.Unmarshal([]byte(raw), &brackets); err == nil && len(brackets) > 0 {
			cfg.Brackets = brackets
		} else {
			log.Printf("Invalid PRICING_BRACKETS, using built-in brackets: %v", err)
		}
	}

	return &cfg
}

// SupplierConfig собирает конфигурацию клиента поставщика
func (c *Config) SupplierConfig() supplier.Config {
	return supplier.Config{
		BaseURL:         c.SupplierBaseURL,
		Email:           c.SupplierEmail,
		Password:        c.SupplierPassword,
		Timeout:         c.SupplierTimeout,
		RateLimitPerSec: c.SupplierRateLimit,
		MaxAttempts:     c.SupplierMaxAttempts,
		TokenCachePath:  c.TokenCachePath,
	}
}

// ImagesConfig собирает конфигурацию пайплайна изображений.
// Proxy-fallback указывает на эндпоинт этого же сервера
func (c *Config) ImagesConfig() images.Config {
	return images.Config{
		BaseHost:       c.ImageBaseHost,
		CacheDir:       c.MediaCacheDir,
		ProxyBaseURL:   "http://127.0.0.1:" + c.Port,
		MaxGallery:     c.MaxGallery,
		RequestTimeout: c.ImageTimeout,
		RatePerSec:     c.ImageRateLimit,
	}
}

// DBConfig собирает настройки пула соединений
func (c *Config) DBConfig() database.DBConfig {
	return database.DBConfig{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// DemoMode включен, когда учетные данные поставщика не заданы
func (c *Config) DemoMode() bool {
	return c.SupplierEmail == "" || c.SupplierPassword == ""
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает переменную окружения как int или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat получает переменную окружения как float64 или возвращает значение по умолчанию
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration получает переменную окружения как Duration или возвращает значение по умолчанию
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// configJSON структура для сериализации конфигурации в JSON
type configJSON struct {
	Port   string `json:"port"`
	UseGUI bool   `json:"use_gui"`

	CatalogDatabasePath string `json:"catalog_database_path"`
	ServiceDatabasePath string `json:"service_database_path"`

	SupplierEmail       string  `json:"supplier_email"`
	SupplierPassword    string  `json:"supplier_password"`
	SupplierBaseURL     string  `json:"supplier_base_url"`
	SupplierTimeout     string  `json:"supplier_timeout"` // time.Duration как строка
	SupplierRateLimit   float64 `json:"supplier_rate_limit_per_sec"`
	SupplierMaxAttempts int     `json:"supplier_max_attempts"`
	TokenCachePath      string  `json:"token_cache_path"`

	MediaCacheDir  string  `json:"media_cache_dir"`
	ImageBaseHost  string  `json:"image_base_host"`
	MaxGallery     int     `json:"max_gallery"`
	ImageRateLimit float64 `json:"image_rate_limit_per_sec"`
	ImageTimeout   string  `json:"image_timeout"` // time.Duration как строка

	Pricing *catalog.PricingConfig `json:"pricing"`

	JobWorkers         int `json:"job_workers"`
	JobCheckpointEvery int `json:"job_checkpoint_every"`

	MaxOpenConns    int    `json:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	ConnMaxLifetime string `json:"conn_max_lifetime"` // time.Duration как строка

	LogBufferSize int    `json:"log_buffer_size"`
	LogLevel      string `json:"log_level"`
}

func (j *configJSON) toConfig() *Config {
	return &Config{
		Port:                j.Port,
		UseGUI:              j.UseGUI,
		CatalogDatabasePath: j.CatalogDatabasePath,
		ServiceDatabasePath: j.ServiceDatabasePath,
		SupplierEmail:       j.SupplierEmail,
		SupplierPassword:    j.SupplierPassword,
		SupplierBaseURL:     j.SupplierBaseURL,
		SupplierTimeout:     parseDurationOr(j.SupplierTimeout, 30*time.Second),
		SupplierRateLimit:   j.SupplierRateLimit,
		SupplierMaxAttempts: j.SupplierMaxAttempts,
		TokenCachePath:      j.TokenCachePath,
		MediaCacheDir:       j.MediaCacheDir,
		ImageBaseHost:       j.ImageBaseHost,
		MaxGallery:          j.MaxGallery,
		ImageRateLimit:      j.ImageRateLimit,
		ImageTimeout:        parseDurationOr(j.ImageTimeout, 15*time.Second),
		Pricing:             j.Pricing,
		JobWorkers:          j.JobWorkers,
		JobCheckpointEvery:  j.JobCheckpointEvery,
		MaxOpenConns:        j.MaxOpenConns,
		MaxIdleConns:        j.MaxIdleConns,
		ConnMaxLifetime:     parseDurationOr(j.ConnMaxLifetime, 5*time.Minute),
		LogBufferSize:       j.LogBufferSize,
		LogLevel:            j.LogLevel,
	}
}

func fromConfig(cfg *Config) *configJSON {
	return &configJSON{
		Port:                cfg.Port,
		UseGUI:              cfg.UseGUI,
		CatalogDatabasePath: cfg.CatalogDatabasePath,
		ServiceDatabasePath: cfg.ServiceDatabasePath,
		SupplierEmail:       cfg.SupplierEmail,
		SupplierPassword:    cfg.SupplierPassword,
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
	}
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// SaveConfig сохраняет конфигурацию в сервисную БД
func SaveConfig(cfg *Config, serviceDB *database.ServiceDB) error {
	return SaveConfigWithHistory(cfg, serviceDB, "", "")
}

// SaveConfigWithHistory сохраняет конфигурацию в сервисную БД с историей изменений
func SaveConfigWithHistory(cfg *Config, serviceDB *database.ServiceDB, changedBy, changeReason string) error {
	if serviceDB == nil {
		return fmt.Errorf("serviceDB is nil")
	}

	configJSONBytes, err := json.Marshal(fromConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := serviceDB.SaveAppConfigWithHistory(string(configJSONBytes), changedBy, changeReason); err != nil {
		return fmt.Errorf("failed to save config to database: %w", err)
	}

	log.Printf("Config saved to service database")
	return nil
}
