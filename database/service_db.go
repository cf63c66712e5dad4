// Package database хранит каталог и сервисное состояние в SQLite:
// товары, задания импорта, advisory-блокировки заданий и конфигурацию
// приложения. Каталог — единственное durable-хранилище товаров;
// пайплайн импорта только предлагает записи и никогда не читает
// их обратно для проверки.
package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBConfig конфигурация подключения к БД
type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ServiceDB обертка для сервисной базы: конфигурация приложения,
// задания импорта и их блокировки
type ServiceDB struct {
	conn *sql.DB
}

// NewServiceDB создает новое подключение к сервисной базе данных
func NewServiceDB(dbPath string) (*ServiceDB, error) {
	config := DBConfig{}

	// Для in-memory SQLite требуется ровно одно соединение, иначе каждое
	// новое соединение получает пустую БД без таблиц и миграций
	if isInMemoryPath(dbPath) {
		config.MaxOpenConns = 1
		config.MaxIdleConns = 1
	}

	return NewServiceDBWithConfig(dbPath, config)
}

// isInMemoryPath определяет, что путь относится к in-memory SQLite
func isInMemoryPath(dbPath string) bool {
	if dbPath == ":memory:" {
		return true
	}

	// Формат file:memdb?mode=memory&cache=shared также хранит БД в памяти
	if strings.HasPrefix(dbPath, "file:") && strings.Contains(dbPath, "mode=memory") {
		return true
	}

	return false
}

// NewServiceDBWithConfig создает новое подключение к сервисной базе данных
// с конфигурацией
func NewServiceDBWithConfig(dbPath string, config DBConfig) (*ServiceDB, error) {
	conn, err := openSQLite(dbPath, config, "service")
	if err != nil {
		return nil, err
	}

	if err := InitServiceSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize service schema: %w", err)
	}

	if err := MigrateServiceSchema(conn); err != nil {
		// Миграции идемпотентны, сбой не прерывает инициализацию
		log.Printf("[ServiceDB] Warning: failed to run service migrations: %v", err)
	}

	return &ServiceDB{conn: conn}, nil
}

// openSQLite открывает SQLite с настройками пула и pragma, общими
// для всех баз приложения
func openSQLite(dbPath string, config DBConfig, label string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", label, err)
	}

	if config.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		// SQLite плохо переносит много одновременных соединений
		conn.SetMaxOpenConns(10)
	}

	if config.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(config.MaxIdleConns)
	} else {
		conn.SetMaxIdleConns(3)
	}

	if config.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", label, err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// WAL позволяет читателям работать одновременно с писателем
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Printf("[Database] Warning: failed to enable WAL mode for %s: %v", label, err)
	}

	return conn, nil
}

// Close закрывает подключение к сервисной базе данных
func (db *ServiceDB) Close() error {
	return db.conn.Close()
}

// Ping проверяет подключение к базе данных
func (db *ServiceDB) Ping() error {
	return db.conn.Ping()
}

// GetDB возвращает указатель на sql.DB для прямого доступа
func (db *ServiceDB) GetDB() *sql.DB {
	return db.conn
}

// GetAppConfig получает конфигурацию приложения из БД
func (db *ServiceDB) GetAppConfig() (string, error) {
	var configJSON string
	err := db.conn.QueryRow(`SELECT config_json FROM app_config WHERE id = 1`).Scan(&configJSON)
	if err == sql.ErrNoRows {
		return "", nil // Конфигурация еще не сохранена
	}
	if err != nil {
		return "", fmt.Errorf("failed to get app config: %w", err)
	}
	return configJSON, nil
}

// GetAppConfigVersion получает версию конфигурации приложения
func (db *ServiceDB) GetAppConfigVersion() (int, error) {
	var version int
	err := db.conn.QueryRow(`SELECT COALESCE(version, 1) FROM app_config WHERE id = 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 1, nil
	}
	if err != nil {
		return 1, fmt.Errorf("failed to get app config version: %w", err)
	}
	return version, nil
}

// SaveAppConfig сохраняет конфигурацию приложения в БД с версионированием
func (db *ServiceDB) SaveAppConfig(configJSON string) error {
	return db.SaveAppConfigWithHistory(configJSON, "", "")
}

// SaveAppConfigWithHistory сохраняет конфигурацию с записью предыдущей
// версии в историю изменений
func (db *ServiceDB) SaveAppConfigWithHistory(configJSON, changedBy, changeReason string) error {
	var currentVersion int
	err := db.conn.QueryRow(`SELECT COALESCE(version, 1) FROM app_config WHERE id = 1`).Scan(&currentVersion)
	if err == sql.ErrNoRows {
		currentVersion = 0
	} else if err != nil {
		return fmt.Errorf("failed to get current config version: %w", err)
	}

	if currentVersion > 0 {
		var currentConfigJSON string
		err := db.conn.QueryRow(`SELECT config_json FROM app_config WHERE id = 1`).Scan(&currentConfigJSON)
		if err == nil && currentConfigJSON != "" {
			_, err = db.conn.Exec(`
				INSERT INTO app_config_history (version, config_json, changed_by, change_reason)
				VALUES (?, ?, ?, ?)
			`, currentVersion, currentConfigJSON, changedBy, changeReason)
			if err != nil {
				// История не должна блокировать сохранение самой конфигурации
				log.Printf("[ServiceDB] Warning: failed to save config to history: %v", err)
			}
		}
	}

	newVersion := currentVersion + 1
	_, err = db.conn.Exec(`
		INSERT INTO app_config (id, config_json, version, updated_at)
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			config_json = excluded.config_json,
			version = excluded.version,
			updated_at = CURRENT_TIMESTAMP
	`, configJSON, newVersion)
	if err != nil {
		return fmt.Errorf("failed to save app config: %w", err)
	}

	return nil
}

// ConfigHistoryEntry архивная версия конфигурации приложения
type ConfigHistoryEntry struct {
	ID           int       `json:"id"`
	Version      int       `json:"version"`
	ConfigJSON   string    `json:"config_json"`
	ChangedBy    string    `json:"changed_by,omitempty"`
	ChangeReason string    `json:"change_reason,omitempty"`
	ChangedAt    time.Time `json:"changed_at"`
}

// GetAppConfigHistory возвращает историю изменений конфигурации,
// свежие записи первыми
func (db *ServiceDB) GetAppConfigHistory(limit int) ([]ConfigHistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.conn.Query(`
		SELECT id, version, config_json, changed_by, change_reason, changed_at
		FROM app_config_history
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query config history: %w", err)
	}
	defer rows.Close()

	var history []ConfigHistoryEntry
	for rows.Next() {
		var entry ConfigHistoryEntry
		var changedBy, changeReason sql.NullString
		if err := rows.Scan(
			&entry.ID, &entry.Version, &entry.ConfigJSON,
			&changedBy, &changeReason, &entry.ChangedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan config history entry: %w", err)
		}
		entry.ChangedBy = nullString(changedBy)
		entry.ChangeReason = nullString(changeReason)
		history = append(history, entry)
	}
	return history, rows.Err()
}

func nullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
