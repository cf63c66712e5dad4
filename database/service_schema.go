package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// InitServiceSchema инициализирует схему сервисной базы данных
func InitServiceSchema(db *sql.DB) error {
	schema := `
	-- Конфигурация приложения: единственная строка с JSON и версией
	CREATE TABLE IF NOT EXISTS app_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- История изменений конфигурации
	CREATE TABLE IF NOT EXISTS app_config_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		changed_by TEXT,
		change_reason TEXT,
		changed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Задания импорта: прогресс переживает перезапуск процесса
	CREATE TABLE IF NOT EXISTS import_jobs (
		job_id TEXT PRIMARY KEY,
		job_type TEXT NOT NULL,                 -- import | price_sync
		status TEXT NOT NULL,                   -- pending | running | completed | cancelled | failed
		total INTEGER DEFAULT 0,
		processed INTEGER DEFAULT 0,
		success_count INTEGER DEFAULT 0,
		fail_count INTEGER DEFAULT 0,
		cancel_requested INTEGER DEFAULT 0,
		message TEXT,                           -- причина отказа для status = failed
		started_at TIMESTAMP,
		completed_at TIMESTAMP,
		heartbeat_at TIMESTAMP
	);

	-- Advisory-блокировки: не больше одного активного задания на тип
	CREATE TABLE IF NOT EXISTS job_locks (
		job_type TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		acquired_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		heartbeat_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_import_jobs_type ON import_jobs(job_type);
	CREATE INDEX IF NOT EXISTS idx_import_jobs_status ON import_jobs(status);
	CREATE INDEX IF NOT EXISTS idx_import_jobs_started ON import_jobs(started_at);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create service schema: %w", err)
	}

	return nil
}

// MigrateServiceSchema выполняет миграции сервисной схемы для баз,
// созданных предыдущими версиями приложения
func MigrateServiceSchema(db *sql.DB) error {
	return ensureMigrationApplied(db, "service_jobs_message_column", func(db *sql.DB) error {
		return addColumnIfMissing(db, `ALTER TABLE import_jobs ADD COLUMN message TEXT`)
	})
}

// addColumnIfMissing выполняет ALTER TABLE, игнорируя ошибку
// уже существующей колонки
func addColumnIfMissing(db *sql.DB, alter string) error {
	if _, err := db.Exec(alter); err != nil {
		errStr := strings.ToLower(err.Error())
		if strings.Contains(errStr, "duplicate column") || strings.Contains(errStr, "already exists") {
			log.Printf("[Migrations] Column already present, skipping: %s", alter)
			return nil
		}
		return err
	}
	return nil
}
