//go:build no_gui
// +build no_gui

// @title Import Server API
// @version 1.0
// @description API сервера импорта каталога: загрузка товаров из API поставщика, обогащение карточек, изображения, ценообразование и выгрузка витрины.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@example.com

// @license.name Internal Use Only
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8077
// @BasePath /api
// @schemes http https

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"importserver/database"
	"importserver/server"
)

func main() {
	log.Println("Запуск сервера импорта каталога (без GUI)...")
	log.Printf("Версия: no_gui build")
	log.Printf("Рабочая директория: %s", getWorkingDir())

	// Загружаем конфигурацию
	log.Println("[1/7] Загрузка конфигурации...")
	config, err := server.LoadConfig()
	if err != nil {
		log.Printf("✗ Ошибка загрузки конфигурации: %v", err)
		log.Fatalf("Не удалось загрузить конфигурацию из переменных окружения")
	}
	log.Printf("✓ Конфигурация загружена. Порт: %s", config.Port)
	log.Printf("Путь к базе каталога: %s", config.CatalogDatabasePath)
	log.Printf("Путь к сервисной БД: %s", config.ServiceDatabasePath)

	// Создаем конфигурацию для БД
	dbConfig := config.DBConfig()

	// Создаем базу каталога
	log.Println("[2/7] Инициализация базы каталога...")
	catalogDB, err := database.NewCatalogDBWithConfig(config.CatalogDatabasePath, dbConfig)
	if err != nil {
		log.Printf("✗ Ошибка создания базы каталога: %v", err)
		log.Fatalf("Не удалось инициализировать базу каталога по пути: %s", config.CatalogDatabasePath)
	}
	defer catalogDB.Close()
	log.Printf("✓ База каталога инициализирована: %s", config.CatalogDatabasePath)

	// Создаем сервисную базу данных для заданий и системной информации
	log.Println("[3/7] Инициализация сервисной базы данных...")
	serviceDB, err := database.NewServiceDBWithConfig(config.ServiceDatabasePath, dbConfig)
	if err != nil {
		log.Printf("✗ Ошибка создания сервисной базы данных: %v", err)
		log.Fatalf("Не удалось инициализировать сервисную базу данных по пути: %s", config.ServiceDatabasePath)
	}
	defer serviceDB.Close()
	log.Printf("✓ Сервисная БД инициализирована: %s", config.ServiceDatabasePath)

	// Перезагружаем конфигурацию из сервисной БД (если есть)
	log.Println("[4/7] Загрузка конфигурации из БД...")
	config, err = server.LoadConfig(serviceDB)
	if err != nil {
		log.Printf("✗ Ошибка загрузки конфигурации из БД: %v", err)
		log.Printf("⚠ Используется конфигурация из переменных окружения")
		// Не делаем fatal - используем конфигурацию из env
	} else {
		log.Printf("✓ Конфигурация загружена из БД")
	}

	// Если конфигурации нет в БД, сохраняем текущую из env
	configJSON, _ := serviceDB.GetAppConfig()
	if configJSON == "" {
		log.Printf("[5/7] Сохранение конфигурации в БД...")
		if err := server.SaveConfig(config, serviceDB); err != nil {
			log.Printf("⚠ Предупреждение: не удалось сохранить конфигурацию в БД: %v", err)
			log.Printf("  Сервер продолжит работу с конфигурацией из переменных окружения")
		} else {
			log.Printf("✓ Конфигурация сохранена в сервисную БД")
		}
	}

	// Создаем сервер
	log.Println("[6/7] Создание сервера и инициализация компонентов...")
	srv := server.NewServerWithConfig(catalogDB, serviceDB, config)
	log.Printf("✓ Сервер создан")
	if config.DemoMode() {
		log.Printf("⚠ Демо-режим: учетные данные поставщика не заданы (CJ_EMAIL/CJ_PASSWORD)")
	}

	// Канал для отслеживания ошибок запуска
	startErrorChan := make(chan error, 1)
	serverStarted := make(chan bool, 1)

	// Запускаем сервер в горутине
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("✗ КРИТИЧЕСКАЯ ОШИБКА: Паника при запуске сервера: %v", r)
				startErrorChan <- fmt.Errorf("panic: %v", r)
				time.Sleep(2 * time.Second)
				log.Fatalf("Паника при запуске сервера: %v", r)
			}
		}()
		log.Printf("Запуск HTTP сервера на порту %s...", config.Port)
		if err := srv.Start(); err != nil {
			// Детальное логирование ошибки перед fatal
			log.Printf("✗ КРИТИЧЕСКАЯ ОШИБКА: Не удалось запустить HTTP сервер")
			log.Printf("  Порт: %s", config.Port)
			log.Printf("  Ошибка: %v", err)
			log.Printf("  Тип ошибки: %T", err)
			startErrorChan <- err
			// Даем время на вывод логов перед завершением
			time.Sleep(2 * time.Second)
			log.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	// Ждем запуска сервера или ошибки
	log.Println("[7/7] Ожидание запуска сервера...")
	select {
	case err := <-startErrorChan:
		log.Printf("✗ Сервер не запустился: %v", err)
		time.Sleep(2 * time.Second) // Даем время на вывод логов
		os.Exit(1)
	case <-time.After(3 * time.Second):
		// Проверяем, действительно ли сервер запустился
		// Если за 3 секунды нет ошибки, считаем что запустился
		serverStarted <- true
	}

	log.Printf("✓ Сервер запущен на порту %s", config.Port)
	log.Printf("API доступно по адресу: http://localhost:%s", config.Port)
	log.Printf("Health check: http://localhost:%s/health", config.Port)
	log.Println("Для остановки нажмите Ctrl+C")

	// Ожидаем сигнал завершения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Получен сигнал завершения, останавливаем сервер...")

	// Останавливаем сервер с таймаутом
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ошибка при остановке сервера: %v", err)
	} else {
		log.Println("Сервер успешно остановлен")
	}
}

// getWorkingDir возвращает рабочую директорию или путь к исполняемому файлу
func getWorkingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		// Если не удалось получить рабочую директорию, используем путь к exe
		if exePath, err := os.Executable(); err == nil {
			return filepath.Dir(exePath)
		}
		return "unknown"
	}
	return wd
}
