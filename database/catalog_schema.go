package database

import (
	"database/sql"
	"fmt"
)

// InitCatalogSchema инициализирует схему базы каталога
func InitCatalogSchema(db *sql.DB) error {
	schema := `
	-- Товары каталога: структурированные колонки для фильтрации,
	-- JSON-колонки для вложенных структур (варианты, галерея, вердикт)
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		supplier_pid TEXT UNIQUE NOT NULL,      -- первичный ключ поставщика
		supplier_sku TEXT,                      -- артикул поставщика
		title TEXT NOT NULL,
		description TEXT,
		category TEXT,
		pet_type TEXT,                          -- dog | cat | universal
		price REAL NOT NULL DEFAULT 0,
		main_image TEXT,                        -- локальный путь кэша
		main_image_url TEXT,                    -- исходный адрес у поставщика
		gallery TEXT,                           -- JSON массив локальных путей
		gallery_urls TEXT,                      -- JSON массив исходных адресов
		variants TEXT,                          -- JSON массив вариантов
		eligibility TEXT,                       -- JSON вердикт гейта
		enrich_status TEXT NOT NULL DEFAULT 'pending',
		image_status TEXT NOT NULL DEFAULT 'unvalidated',
		source TEXT NOT NULL DEFAULT 'supplier',
		published INTEGER NOT NULL DEFAULT 0,
		imported_at TIMESTAMP,
		updated_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_products_supplier_pid ON products(supplier_pid);
	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
	CREATE INDEX IF NOT EXISTS idx_products_pet_type ON products(pet_type);
	CREATE INDEX IF NOT EXISTS idx_products_enrich_status ON products(enrich_status);
	CREATE INDEX IF NOT EXISTS idx_products_published ON products(published);
	CREATE INDEX IF NOT EXISTS idx_products_updated_at ON products(updated_at);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create catalog schema: %w", err)
	}

	return nil
}

// MigrateCatalogSchema выполняет миграции каталога для баз,
// созданных предыдущими версиями приложения
func MigrateCatalogSchema(db *sql.DB) error {
	if err := ensureMigrationApplied(db, "catalog_pet_type_column", func(db *sql.DB) error {
		return addColumnIfMissing(db, `ALTER TABLE products ADD COLUMN pet_type TEXT`)
	}); err != nil {
		return err
	}

	return ensureMigrationApplied(db, "catalog_image_status_index", func(db *sql.DB) error {
		_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_products_image_status ON products(image_status)`)
		return err
	})
}
