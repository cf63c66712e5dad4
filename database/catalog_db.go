package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"importserver/catalog"
)

// CatalogDB обертка для работы с базой каталога товаров.
// Записи сериализуются мьютексом: каталог — единственный писатель
// своих строк, воркеры импорта только предлагают upsert'ы
type CatalogDB struct {
	conn    *sql.DB
	writeMu sync.Mutex
}

// NewCatalogDB создает новое подключение к базе каталога
func NewCatalogDB(dbPath string) (*CatalogDB, error) {
	config := DBConfig{}
	if isInMemoryPath(dbPath) {
		config.MaxOpenConns = 1
		config.MaxIdleConns = 1
	}
	return NewCatalogDBWithConfig(dbPath, config)
}

// NewCatalogDBWithConfig создает новое подключение к базе каталога
// с конфигурацией
func NewCatalogDBWithConfig(dbPath string, config DBConfig) (*CatalogDB, error) {
	conn, err := openSQLite(dbPath, config, "catalog")
	if err != nil {
		return nil, err
	}

	if err := InitCatalogSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	if err := MigrateCatalogSchema(conn); err != nil {
		log.Printf("[CatalogDB] Warning: failed to run catalog migrations: %v", err)
	}

	return &CatalogDB{conn: conn}, nil
}

// Close закрывает подключение к базе каталога
func (db *CatalogDB) Close() error {
	return db.conn.Close()
}

// Ping проверяет подключение к базе данных
func (db *CatalogDB) Ping() error {
	return db.conn.Ping()
}

// GetDB возвращает указатель на sql.DB для прямого доступа
func (db *CatalogDB) GetDB() *sql.DB {
	return db.conn
}

// UpsertProduct вставляет товар или обновляет существующий по supplier_pid.
// Повторный импорт того же товара поставщика сохраняет внутренний id
// и дату первого импорта; p мутируется, чтобы отразить персистентную
// идентичность
func (db *CatalogDB) UpsertProduct(p *catalog.Product) error {
	if p == nil {
		return fmt.Errorf("product is nil")
	}
	if p.SupplierPid == "" {
		return fmt.Errorf("product has no supplier pid")
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	var existingID string
	var importedAt sql.NullTime
	err := db.conn.QueryRow(
		`SELECT id, imported_at FROM products WHERE supplier_pid = ?`, p.SupplierPid,
	).Scan(&existingID, &importedAt)
	switch {
	case err == sql.ErrNoRows:
		// Первый импорт
	case err != nil:
		return fmt.Errorf("failed to look up product %s: %w", p.SupplierPid, err)
	default:
		p.ID = existingID
		if importedAt.Valid {
			p.ImportedAt = importedAt.Time
		}
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.UpdatedAt = time.Now()
	if p.ImportedAt.IsZero() {
		p.ImportedAt = p.UpdatedAt
	}

	_, err = db.conn.Exec(`
		INSERT INTO products (
			id, supplier_pid, supplier_sku, title, description, category,
			pet_type, price, main_image, main_image_url, gallery, gallery_urls,
			variants, eligibility, enrich_status, image_status, source,
			published, imported_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(supplier_pid) DO UPDATE SET
			supplier_sku = excluded.supplier_sku,
			title = excluded.title,
			description = excluded.description,
			category = excluded.category,
			pet_type = excluded.pet_type,
			price = excluded.price,
			main_image = excluded.main_image,
			main_image_url = excluded.main_image_url,
			gallery = excluded.gallery,
			gallery_urls = excluded.gallery_urls,
			variants = excluded.variants,
			eligibility = excluded.eligibility,
			enrich_status = excluded.enrich_status,
			image_status = excluded.image_status,
			source = excluded.source,
			published = excluded.published,
			updated_at = excluded.updated_at
	`,
		p.ID, p.SupplierPid, p.SupplierSku, p.Title, p.Description, p.Category,
		p.PetType, p.Price, p.MainImage, p.MainImageURL,
		marshalJSON(p.Gallery), marshalJSON(p.GalleryURLs),
		marshalJSON(p.Variants), marshalJSON(p.Eligibility),
		p.EnrichStatus, p.ImageStatus, p.Source,
		p.Published, p.ImportedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.SupplierPid, err)
	}

	return nil
}

// GetProduct получает товар по внутреннему id; (nil, nil) если товара нет
func (db *CatalogDB) GetProduct(id string) (*catalog.Product, error) {
	return db.getProductBy("id", id)
}

// GetProductBySupplierPid получает товар по первичному ключу поставщика;
// (nil, nil) если товара нет
func (db *CatalogDB) GetProductBySupplierPid(pid string) (*catalog.Product, error) {
	return db.getProductBy("supplier_pid", pid)
}

func (db *CatalogDB) getProductBy(column, value string) (*catalog.Product, error) {
	query := fmt.Sprintf(`
		SELECT id, supplier_pid, supplier_sku, title, description, category,
			pet_type, price, main_image, main_image_url, gallery, gallery_urls,
			variants, eligibility, enrich_status, image_status, source,
			published, imported_at, updated_at
		FROM products WHERE %s = ?
	`, column)

	p, err := scanProduct(db.conn.QueryRow(query, value))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by %s: %w", column, err)
	}
	return p, nil
}

// ProductFilter условия выборки товаров; пустые поля не фильтруют
type ProductFilter struct {
	Category      string
	PetType       string
	EnrichStatus  string
	ImageStatus   string
	Source        string
	Search        string // подстрока названия
	OnlyPublished bool
	Limit         int
	Offset        int
}

// ListProducts возвращает товары каталога по фильтру,
// свежие по updated_at первыми
func (db *CatalogDB) ListProducts(filter ProductFilter) ([]catalog.Product, error) {
	where, args := filter.whereClause()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	args = append(args, limit, filter.Offset)

	query := `
		SELECT id, supplier_pid, supplier_sku, title, description, category,
			pet_type, price, main_image, main_image_url, gallery, gallery_urls,
			variants, eligibility, enrich_status, image_status, source,
			published, imported_at, updated_at
		FROM products
	` + where + ` ORDER BY updated_at DESC LIMIT ? OFFSET ?`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// CountProducts считает товары, попадающие под фильтр
func (db *CatalogDB) CountProducts(filter ProductFilter) (int, error) {
	where, args := filter.whereClause()

	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM products`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

func (f ProductFilter) whereClause() (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		conditions = append(conditions, cond)
		args = append(args, arg)
	}

	if f.Category != "" {
		add("category = ?", f.Category)
	}
	if f.PetType != "" {
		add("pet_type = ?", f.PetType)
	}
	if f.EnrichStatus != "" {
		add("enrich_status = ?", f.EnrichStatus)
	}
	if f.ImageStatus != "" {
		add("image_status = ?", f.ImageStatus)
	}
	if f.Source != "" {
		add("source = ?", f.Source)
	}
	if f.Search != "" {
		add("title LIKE ?", "%"+f.Search+"%")
	}
	if f.OnlyPublished {
		conditions = append(conditions, "published = 1")
	}

	if len(conditions) == 0 {
		return "", nil
	}

	where := " WHERE " + conditions[0]
	for _, cond := range conditions[1:] {
		where += " AND " + cond
	}
	return where, args
}

// SetPublished переключает флаг публикации товара
func (db *CatalogDB) SetPublished(id string, published bool) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	result, err := db.conn.Exec(
		`UPDATE products SET published = ?, updated_at = ? WHERE id = ?`,
		published, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update published flag: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("product %s not found", id)
	}
	return nil
}

// DeleteProduct удаляет товар по внутреннему id
func (db *CatalogDB) DeleteProduct(id string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	result, err := db.conn.Exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("product %s not found", id)
	}
	return nil
}

// AllSupplierPids возвращает первичные ключи поставщика всех товаров;
// основа для заданий пересинхронизации
func (db *CatalogDB) AllSupplierPids() ([]string, error) {
	rows, err := db.conn.Query(`SELECT supplier_pid FROM products ORDER BY imported_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplier pids: %w", err)
	}
	defer rows.Close()

	var pids []string
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return nil, err
		}
		pids = append(pids, pid)
	}
	return pids, rows.Err()
}

// CatalogStats сводка каталога для мониторинга и GUI
type CatalogStats struct {
	Total          int            `json:"total"`
	Published      int            `json:"published"`
	ByEnrichStatus map[string]int `json:"by_enrich_status"`
	ByImageStatus  map[string]int `json:"by_image_status"`
	BySource       map[string]int `json:"by_source"`
}

// GetStats собирает сводку каталога
func (db *CatalogDB) GetStats() (*CatalogStats, error) {
	stats := &CatalogStats{
		ByEnrichStatus: make(map[string]int),
		ByImageStatus:  make(map[string]int),
		BySource:       make(map[string]int),
	}

	err := db.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(published), 0) FROM products`,
	).Scan(&stats.Total, &stats.Published)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	for column, target := range map[string]map[string]int{
		"enrich_status": stats.ByEnrichStatus,
		"image_status":  stats.ByImageStatus,
		"source":        stats.BySource,
	} {
		query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM products GROUP BY %s`, column, column)
		rows, err := db.conn.Query(query)
		if err != nil {
			return nil, fmt.Errorf("failed to group products by %s: %w", column, err)
		}
		for rows.Next() {
			var key sql.NullString
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, err
			}
			target[nullString(key)] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return stats, nil
}

// rowScanner покрывает и *sql.Row, и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*catalog.Product, error) {
	var p catalog.Product
	var sku, description, category, petType sql.NullString
	var mainImage, mainImageURL sql.NullString
	var gallery, galleryURLs, variants, eligibility sql.NullString
	var importedAt, updatedAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.SupplierPid, &sku, &p.Title, &description, &category,
		&petType, &p.Price, &mainImage, &mainImageURL, &gallery, &galleryURLs,
		&variants, &eligibility, &p.EnrichStatus, &p.ImageStatus, &p.Source,
		&p.Published, &importedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.SupplierSku = nullString(sku)
	p.Description = nullString(description)
	p.Category = nullString(category)
	p.PetType = nullString(petType)
	p.MainImage = nullString(mainImage)
	p.MainImageURL = nullString(mainImageURL)
	unmarshalJSON(nullString(gallery), &p.Gallery)
	unmarshalJSON(nullString(galleryURLs), &p.GalleryURLs)
	unmarshalJSON(nullString(variants), &p.Variants)
	unmarshalJSON(nullString(eligibility), &p.Eligibility)
	if importedAt.Valid {
		p.ImportedAt = importedAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}

	return &p, nil
}

// marshalJSON сериализует вложенную структуру в JSON-колонку;
// ошибки маршалинга наших собственных типов невозможны, пустой
// результат хранится как пустая строка
func marshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	s := string(data)
	if s == "null" || s == "[]" {
		return ""
	}
	return s
}

// unmarshalJSON разбирает JSON-колонку; битое содержимое оставляет
// целевое значение нулевым, не ломая чтение всей строки
func unmarshalJSON(data string, v interface{}) {
	if data == "" {
		return
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		log.Printf("[CatalogDB] Warning: corrupted JSON column ignored: %v", err)
	}
}
