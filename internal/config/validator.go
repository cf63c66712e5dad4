package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"importserver/catalog"
	"importserver/images"
	"importserver/supplier"
)

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	var errors []string

	// Валидация порта
	if c.Port == "" {
		errors = append(errors, "port is required")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("invalid port: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("port must be between 1 and 65535, got %d", port))
		}
	}

	// Валидация путей к базам данных
	if c.CatalogDatabasePath == "" {
		errors = append(errors, "catalog database path is required")
	}
	if c.ServiceDatabasePath == "" {
		errors = append(errors, "service database path is required")
	}

	// Валидация клиента поставщика. Учетные данные не обязательны:
	// без них сервер работает в демо-режиме
	if c.SupplierBaseURL == "" {
		errors = append(errors, "supplier base URL is required")
	}
	if c.SupplierTimeout < time.Second {
		errors = append(errors, "supplier timeout must be at least 1s")
	}
	if c.SupplierRateLimit <= 0 {
		errors = append(errors, "supplier rate limit must be positive")
	}
	if c.SupplierMaxAttempts < 1 || c.SupplierMaxAttempts > 10 {
		errors = append(errors, fmt.Sprintf("supplier max attempts must be between 1 and 10, got %d", c.SupplierMaxAttempts))
	}

	// Валидация пайплайна изображений
	if c.MediaCacheDir == "" {
		errors = append(errors, "media cache dir is required")
	}
	if c.MaxGallery < 0 || c.MaxGallery > 50 {
		errors = append(errors, fmt.Sprintf("max gallery must be between 0 and 50, got %d", c.MaxGallery))
	}
	if c.ImageRateLimit <= 0 {
		errors = append(errors, "image rate limit must be positive")
	}
	if c.ImageTimeout < time.Second {
		errors = append(errors, "image timeout must be at least 1s")
	}

	// Валидация ценообразования
	if c.Pricing == nil {
		errors = append(errors, "pricing section is required")
	} else {
		errors = append(errors, validatePricing(c.Pricing)...)
	}

	// Валидация фоновых заданий
	if c.JobWorkers < 1 || c.JobWorkers > 32 {
		errors = append(errors, fmt.Sprintf("job workers must be between 1 and 32, got %d", c.JobWorkers))
	}
	if c.JobCheckpointEvery < 1 {
		errors = append(errors, "job checkpoint interval must be at least 1")
	}

	// Валидация пула соединений
	if c.MaxOpenConns < 1 {
		errors = append(errors, "max open connections must be at least 1")
	}
	if c.MaxIdleConns < 0 {
		errors = append(errors, "max idle connections cannot be negative")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		errors = append(errors, "max idle connections cannot exceed max open connections")
	}
	if c.ConnMaxLifetime < 0 {
		errors = append(errors, "connection max lifetime cannot be negative")
	}

	// Валидация логирования
	if c.LogBufferSize < 1 || c.LogBufferSize > 10000 {
		errors = append(errors, fmt.Sprintf("log buffer size must be between 1 and 10000, got %d", c.LogBufferSize))
	}
	// Пустой уровень допустим: логгер подставит INFO
	if c.LogLevel != "" {
		switch strings.ToUpper(c.LogLevel) {
		case "DEBUG", "INFO", "WARN", "ERROR":
		default:
			errors = append(errors, fmt.Sprintf("log level must be one of DEBUG, INFO, WARN, ERROR, got %s", c.LogLevel))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// validatePricing проверяет правила ценообразования
func validatePricing(p *catalog.PricingConfig) []string {
	var errors []string

	if p.ShippingBuffer < 0 {
		errors = append(errors, "pricing: shipping buffer cannot be negative")
	}
	if p.FallbackMultiplier < 1 {
		errors = append(errors, "pricing: fallback multiplier must be at least 1")
	}
	if len(p.Brackets) == 0 {
		errors = append(errors, "pricing: at least one price bracket is required")
	}
	prevMax := 0.0
	for i, b := range p.Brackets {
		if b.MaxCost <= prevMax {
			errors = append(errors, fmt.Sprintf("pricing: bracket %d max cost must exceed the previous bracket", i))
		}
		if b.Multiplier < 1 {
			errors = append(errors, fmt.Sprintf("pricing: bracket %d multiplier must be at least 1", i))
		}
		prevMax = b.MaxCost
	}
	if p.MaxCategoryAdjust < 0 || p.MaxCategoryAdjust > 1 {
		errors = append(errors, "pricing: max category adjust must be between 0 and 1")
	}
	if p.MinProfit < 0 {
		errors = append(errors, "pricing: min profit cannot be negative")
	}
	if p.MaxMultiplier <= 1 {
		errors = append(errors, "pricing: max multiplier must be greater than 1")
	}
	if p.MinSalePrice < 0 {
		errors = append(errors, "pricing: min sale price cannot be negative")
	}

	return errors
}

// GetDefaults возвращает конфигурацию по умолчанию
func GetDefaults() *Config {
	pricing := catalog.DefaultPricingConfig()
	return &Config{
		Port:   "8077",
		UseGUI: false,

		CatalogDatabasePath: "data/catalog.db",
		ServiceDatabasePath: "data/service.db",

		SupplierBaseURL:     supplier.DefaultBaseURL,
		SupplierTimeout:     30 * time.Second,
		SupplierRateLimit:   1.0,
		SupplierMaxAttempts: 3,
		TokenCachePath:      "data/cj_token.json",

		MediaCacheDir:  "data/media",
		ImageBaseHost:  images.DefaultBaseHost,
		MaxGallery:     15,
		ImageRateLimit: 4.0,
		ImageTimeout:   15 * time.Second,

		Pricing: &pricing,

		JobWorkers:         4,
		JobCheckpointEvery: 5,

		MaxOpenConns:    10,
		MaxIdleConns:    3,
		ConnMaxLifetime: 5 * time.Minute,

		LogBufferSize: 100,
		LogLevel:      "INFO",
	}
}
