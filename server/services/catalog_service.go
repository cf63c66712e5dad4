package services

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"importserver/catalog"
	"importserver/database"
	apperrors "importserver/server/errors"
)

// CatalogServiceInterface определяет интерфейс для работы с каталогом товаров
type CatalogServiceInterface interface {
	ListProducts(filter database.ProductFilter) ([]catalog.Product, int, error)
	GetProduct(id string) (*catalog.Product, error)
	DeleteProduct(id string) error
	SetPublished(id string, published bool) (*catalog.Product, error)
	GetStats() (*database.CatalogStats, error)
	ExportProducts(filter database.ProductFilter, format catalog.ExportFormat) (string, error)
}

// CatalogService сервис для чтения и правки каталога товаров.
// Вся запись в каталог при импорте идет мимо него — сервис покрывает
// операторские операции: просмотр, публикацию, удаление, выгрузку
type CatalogService struct {
	catalogDB *database.CatalogDB
	exporter  *catalog.Exporter
}

// NewCatalogService создает новый сервис каталога
func NewCatalogService(catalogDB *database.CatalogDB) *CatalogService {
	return &CatalogService{
		catalogDB: catalogDB,
		exporter:  catalog.NewExporter(),
	}
}

// Compile-time проверка, что CatalogService реализует интерфейс CatalogServiceInterface
var _ CatalogServiceInterface = (*CatalogService)(nil)

// ListProducts возвращает страницу каталога и общее число товаров под фильтром
func (cs *CatalogService) ListProducts(filter database.ProductFilter) ([]catalog.Product, int, error) {
	products, err := cs.catalogDB.ListProducts(filter)
	if err != nil {
		return nil, 0, apperrors.NewInternalError("не удалось получить список товаров", err)
	}

	total, err := cs.catalogDB.CountProducts(filter)
	if err != nil {
		return nil, 0, apperrors.NewInternalError("не удалось посчитать товары", err)
	}

	return products, total, nil
}

// GetProduct возвращает товар по внутреннему id
func (cs *CatalogService) GetProduct(id string) (*catalog.Product, error) {
	product, err := cs.catalogDB.GetProduct(id)
	if err != nil {
		return nil, apperrors.NewInternalError("не удалось получить товар", err)
	}
	if product == nil {
		return nil, apperrors.NewNotFoundError("товар не найден", nil)
	}
	return product, nil
}

// DeleteProduct удаляет товар из каталога
func (cs *CatalogService) DeleteProduct(id string) error {
	product, err := cs.catalogDB.GetProduct(id)
	if err != nil {
		return apperrors.NewInternalError("не удалось получить товар", err)
	}
	if product == nil {
		return apperrors.NewNotFoundError("товар не найден", nil)
	}

	if err := cs.catalogDB.DeleteProduct(id); err != nil {
		return apperrors.NewInternalError("не удалось удалить товар", err)
	}
	return nil
}

// SetPublished меняет флаг публикации и возвращает обновленный товар
func (cs *CatalogService) SetPublished(id string, published bool) (*catalog.Product, error) {
	product, err := cs.catalogDB.GetProduct(id)
	if err != nil {
		return nil, apperrors.NewInternalError("не удалось получить товар", err)
	}
	if product == nil {
		return nil, apperrors.NewNotFoundError("товар не найден", nil)
	}

	if err := cs.catalogDB.SetPublished(id, published); err != nil {
		return nil, apperrors.NewInternalError("не удалось изменить публикацию", err)
	}

	product.Published = published
	return product, nil
}

// GetStats собирает сводку каталога
func (cs *CatalogService) GetStats() (*database.CatalogStats, error) {
	stats, err := cs.catalogDB.GetStats()
	if err != nil {
		return nil, apperrors.NewInternalError("не удалось собрать статистику каталога", err)
	}
	return stats, nil
}

// ExportProducts выгружает каталог под фильтром во временный файл
// и возвращает путь к нему. Удаление файла — забота вызывающего
func (cs *CatalogService) ExportProducts(filter database.ProductFilter, format catalog.ExportFormat) (string, error) {
	// Листинг отдает не больше 500 строк за раз, поэтому выгрузка
	// собирает каталог постранично
	filter.Limit = 500
	filter.Offset = 0
	var products []catalog.Product
	for {
		page, err := cs.catalogDB.ListProducts(filter)
		if err != nil {
			return "", apperrors.NewInternalError("не удалось получить товары для выгрузки", err)
		}
		products = append(products, page...)
		if len(page) < filter.Limit {
			break
		}
		filter.Offset += filter.Limit
	}

	ext := map[catalog.ExportFormat]string{
		catalog.FormatJSON:  "json",
		catalog.FormatCSV:   "csv",
		catalog.FormatExcel: "xlsx",
	}[format]
	if ext == "" {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("неподдерживаемый формат выгрузки: %s", format), nil)
	}

	filename := filepath.Join(os.TempDir(),
		fmt.Sprintf("catalog_export_%d.%s", time.Now().UnixNano(), ext))
	if err := cs.exporter.Export(products, format, filename); err != nil {
		return "", apperrors.NewInternalError("не удалось выгрузить каталог", err)
	}

	return filename, nil
}
