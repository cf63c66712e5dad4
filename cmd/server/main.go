//go:build !no_gui
// +build !no_gui

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
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"importserver/database"
	"importserver/gui"
	"importserver/internal/config"
	"importserver/server"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════")
	log.Println("🚀 Запуск сервера импорта каталога...")

	// Загружаем базовую конфигурацию из env (только для путей к БД)
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Создаем папку кеша изображений если её нет
	if err := os.MkdirAll(cfg.MediaCacheDir, 0755); err != nil {
		log.Printf("Предупреждение: не удалось создать папку кеша изображений: %v", err)
	}

	// Создаем конфигурацию для БД
	dbConfig := cfg.DBConfig()

	// Создаем базу каталога
	catalogDB, err := database.NewCatalogDBWithConfig(cfg.CatalogDatabasePath, dbConfig)
	if err != nil {
		log.Fatalf("Ошибка создания базы каталога: %v", err)
	}
	defer catalogDB.Close()
	log.Printf("Используется база каталога: %s", cfg.CatalogDatabasePath)

	// Создаем сервисную базу данных для заданий и системной информации
	serviceDB, err := database.NewServiceDBWithConfig(cfg.ServiceDatabasePath, dbConfig)
	if err != nil {
		log.Fatalf("Ошибка создания сервисной базы данных: %v", err)
	}
	defer serviceDB.Close()
	log.Printf("Используется сервисная база данных: %s", cfg.ServiceDatabasePath)

	// Перезагружаем конфигурацию из сервисной БД (если есть)
	cfg, err = config.LoadConfig(serviceDB)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации из БД: %v", err)
	}

	// Если конфигурации нет в БД, сохраняем текущую из env
	configJSON, _ := serviceDB.GetAppConfig()
	if configJSON == "" {
		log.Printf("Config not found in DB, saving current config from environment")
		if err := server.SaveConfig(cfg, serviceDB); err != nil {
			log.Printf("Warning: failed to save config to DB: %v", err)
		} else {
			log.Printf("Config saved to service database")
		}
	}

	// Создаем сервер с базой каталога и сервисной БД
	srv := server.NewServerWithConfig(catalogDB, serviceDB, cfg)

	// Проверяем, нужно ли запускать GUI (по умолчанию в контейнере без GUI)
	useGUI := cfg.UseGUI || os.Getenv("USE_GUI") == "true"

	var window *gui.Window
	if useGUI {
		// Создаем GUI окно только если явно указано
		window = gui.NewWindow(srv.GetLogChannel())
	}

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

	// Обновляем статистику каждые 5 секунд (только для GUI)
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			// Обновляем статистику только для GUI, без спама в консоль
			if useGUI && window != nil {
				window.UpdateStatsFromMain(srv.GetServerStats())
			}
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
		if useGUI && window != nil {
			window.SetStatus("Сервер останавливается...")
		}

		// Graceful shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("✗ Ошибка при остановке сервера: %v", err)
		} else {
			log.Println("✓ Сервер успешно остановлен")
		}

		cancel()
		os.Exit(0)
	}()

	log.Println("═══════════════════════════════════════════════════════")
	log.Printf("✓ Сервер успешно запущен на порту %s", cfg.Port)
	log.Printf("✓ API доступно: http://localhost:%s", cfg.Port)
	log.Printf("✓ Swagger UI: http://localhost:%s/swagger/index.html", cfg.Port)
	log.Printf("✓ База каталога: %s", cfg.CatalogDatabasePath)
	log.Printf("✓ Сервисная БД: %s", cfg.ServiceDatabasePath)
	if cfg.DemoMode() {
		log.Println("⚠ Демо-режим: учетные данные поставщика не заданы (CJ_EMAIL/CJ_PASSWORD)")
	}

	if useGUI && window != nil {
		log.Println("✓ GUI интерфейс включен")
		log.Println("═══════════════════════════════════════════════════════")
		// Показываем GUI и блокируем выполнение
		window.ShowAndRun()
	} else {
		log.Println("✓ Режим без GUI (консольный режим)")
		log.Println("  Для остановки нажмите Ctrl+C")
		log.Println("═══════════════════════════════════════════════════════")
		// Блокируем выполнение
		<-ctx.Done()
	}
}
