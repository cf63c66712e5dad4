//go:build docker
// +build docker

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"importserver/database"
	"importserver/server"
)

func main() {
	log.Println("Запуск сервера импорта каталога (Docker режим без GUI)...")

	// Загружаем конфигурацию
	config, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Создаем конфигурацию для БД
	dbConfig := config.DBConfig()

	// Создаем базу каталога
	catalogDB, err := database.NewCatalogDBWithConfig(config.CatalogDatabasePath, dbConfig)
	if err != nil {
		log.Fatalf("Ошибка создания базы каталога: %v", err)
	}
	defer catalogDB.Close()
	log.Printf("Используется база каталога: %s", config.CatalogDatabasePath)

	// Создаем сервисную базу данных для заданий и системной информации
	serviceDB, err := database.NewServiceDBWithConfig(config.ServiceDatabasePath, dbConfig)
	if err != nil {
		log.Fatalf("Ошибка создания сервисной базы данных: %v", err)
	}
	defer serviceDB.Close()
	log.Printf("Используется сервисная база данных: %s", config.ServiceDatabasePath)

	// Перезагружаем конфигурацию из сервисной БД (если есть)
	config, err = server.LoadConfig(serviceDB)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации из БД: %v", err)
	}

	// Если конфигурации нет в БД, сохраняем текущую из env
	configJSON, _ := serviceDB.GetAppConfig()
	if configJSON == "" {
		log.Printf("Config not found in DB, saving current config from environment")
		if err := server.SaveConfig(config, serviceDB); err != nil {
			log.Printf("Warning: failed to save config to DB: %v", err)
		} else {
			log.Printf("Config saved to service database")
		}
	}

	// Создаем сервер с базой каталога и сервисной БД
	srv := server.NewServerWithConfig(catalogDB, serviceDB, config)

	// Запускаем сервер в отдельной горутине
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Fatalf("✗ КРИТИЧЕСКАЯ ОШИБКА: Паника при запуске сервера: %v", r)
			}
		}()
		if err := srv.Start(); err != nil {
			log.Fatalf("✗ КРИТИЧЕСКАЯ ОШИБКА: Ошибка запуска сервера: %v", err)
		}
	}()

	// Обработка сигналов для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("═══════════════════════════════════════════════════════")
		log.Println("⏹  Получен сигнал завершения, останавливаю сервер...")

		// Graceful shutdown
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("✗ Ошибка при остановке сервера: %v", err)
		} else {
			log.Println("✓ Сервер успешно остановлен")
		}

		cancel()
		os.Exit(0)
	}()

	log.Println("═══════════════════════════════════════════════════════")
	log.Printf("✓ Сервер успешно запущен на порту %s", config.Port)
	log.Printf("✓ API доступно: http://localhost:%s", config.Port)
	log.Printf("✓ База каталога: %s", config.CatalogDatabasePath)
	log.Printf("✓ Сервисная БД: %s", config.ServiceDatabasePath)
	if config.DemoMode() {
		log.Println("⚠ Демо-режим: учетные данные поставщика не заданы")
	}
	log.Println("✓ Режим: Docker контейнер (без GUI)")
	log.Println("  Для остановки нажмите Ctrl+C")
	log.Println("═══════════════════════════════════════════════════════")

	// Блокируем выполнение
	<-ctx.Done()
}
