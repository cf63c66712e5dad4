package main

import (
	"fmt"
	"os"

	"importserver/internal/config"
)

func main() {
	fmt.Println("=== Проверка конфигурации ===")
	fmt.Println("")

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("❌ Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Конфигурация успешно загружена")
	fmt.Println("")

	// Выводим основные настройки
	fmt.Println("Основные настройки:")
	fmt.Printf("  Порт: %s\n", cfg.Port)
	fmt.Printf("  База каталога: %s\n", cfg.CatalogDatabasePath)
	fmt.Printf("  Сервисная БД: %s\n", cfg.ServiceDatabasePath)
	fmt.Println("")

	// Выводим настройки connection pooling
	fmt.Println("Connection Pooling:")
	fmt.Printf("  Max Open Connections: %d\n", cfg.MaxOpenConns)
	fmt.Printf("  Max Idle Connections: %d\n", cfg.MaxIdleConns)
	fmt.Printf("  Connection Max Lifetime: %v\n", cfg.ConnMaxLifetime)
	fmt.Println("")

	// Выводим настройки API поставщика
	fmt.Println("Supplier API:")
	if cfg.SupplierEmail != "" && cfg.SupplierPassword != "" {
		fmt.Printf("  Учетные данные: [установлены]\n")
	} else {
		fmt.Printf("  Учетные данные: [не установлены, демо-режим]\n")
	}
	fmt.Printf("  Base URL: %s\n", cfg.SupplierBaseURL)
	fmt.Printf("  Timeout: %v\n", cfg.SupplierTimeout)
	fmt.Printf("  Rate Limit: %.2f req/s\n", cfg.SupplierRateLimit)
	fmt.Printf("  Max Attempts: %d\n", cfg.SupplierMaxAttempts)
	fmt.Printf("  Token Cache: %s\n", cfg.TokenCachePath)
	fmt.Println("")

	// Выводим настройки пайплайна изображений
	fmt.Println("Images:")
	fmt.Printf("  Cache Dir: %s\n", cfg.MediaCacheDir)
	fmt.Printf("  Base Host: %s\n", cfg.ImageBaseHost)
	fmt.Printf("  Max Gallery: %d\n", cfg.MaxGallery)
	fmt.Printf("  Rate Limit: %.2f req/s\n", cfg.ImageRateLimit)
	fmt.Printf("  Timeout: %v\n", cfg.ImageTimeout)
	fmt.Println("")

	// Выводим настройки ценообразования
	if cfg.Pricing != nil {
		fmt.Println("Pricing:")
		fmt.Printf("  Shipping Buffer: %.2f\n", cfg.Pricing.ShippingBuffer)
		fmt.Printf("  Brackets: %d\n", len(cfg.Pricing.Brackets))
		fmt.Printf("  Min Profit: %.2f\n", cfg.Pricing.MinProfit)
		fmt.Printf("  Max Multiplier: %.2f\n", cfg.Pricing.MaxMultiplier)
		fmt.Printf("  Min Sale Price: %.2f\n", cfg.Pricing.MinSalePrice)
		fmt.Println("")
	}

	// Выводим настройки фоновых заданий
	fmt.Println("Jobs:")
	fmt.Printf("  Workers: %d\n", cfg.JobWorkers)
	fmt.Printf("  Checkpoint Every: %d items\n", cfg.JobCheckpointEvery)
	fmt.Println("")

	// Проверяем валидацию
	if err := cfg.Validate(); err != nil {
		fmt.Printf("⚠️  Предупреждения валидации: %v\n", err)
		fmt.Println("")
	} else {
		fmt.Println("✅ Валидация пройдена успешно")
		fmt.Println("")
	}

	fmt.Println("=== Проверка завершена ===")
}
