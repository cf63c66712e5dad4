package services

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"importserver/catalog"
	"importserver/database"
)

// setupTestCatalogDB создает тестовую базу каталога в памяти
func setupTestCatalogDB(t *testing.T) *database.CatalogDB {
	catalogDB, err := database.NewCatalogDB(":memory:")
	require.NoError(t, err, "Failed to create test catalog database")
	t.Cleanup(func() { catalogDB.Close() })
	return catalogDB
}

// seedProduct кладет товар в каталог и возвращает его
func seedProduct(t *testing.T, db *database.CatalogDB, title, category string, published bool) *catalog.Product {
	t.Helper()

	now := time.Now()
	product := &catalog.Product{
		ID:          uuid.NewString(),
		SupplierPid: uuid.NewString(),
		Title:       title,
		Category:    category,
		Price:       19.90,
		Variants: []catalog.Variant{
			{SKU: "SKU-" + title, CostPrice: 5, SalePrice: 19.90, Stock: 10},
		},
		EnrichStatus: catalog.EnrichSuccess,
		ImageStatus:  catalog.ImageMissing,
		Source:       catalog.SourceSupplier,
		Published:    published,
		ImportedAt:   now,
		UpdatedAt:    now,
	}
	require.NoError(t, db.UpsertProduct(product))
	return product
}

func TestCatalogService_ListProducts(t *testing.T) {
	catalogDB := setupTestCatalogDB(t)
	service := NewCatalogService(catalogDB)

	seedProduct(t, catalogDB, "Interactive Dog Toy", "Dog Toys", true)
	seedProduct(t, catalogDB, "Cat Scratching Post", "Cat Furniture", false)
	seedProduct(t, catalogDB, "Durable Dog Chew", "Dog Toys", false)

	products, total, err := service.ListProducts(database.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, products, 3)
	assert.Equal(t, 3, total)

	// Фильтр по категории
	products, total, err = service.ListProducts(database.ProductFilter{Category: "Dog Toys"})
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, 2, total)

	// Только опубликованные
	products, total, err = service.ListProducts(database.ProductFilter{OnlyPublished: true})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Interactive Dog Toy", products[0].Title)

	// Поиск по подстроке названия
	products, total, err = service.ListProducts(database.ProductFilter{Search: "dog"})
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, 2, total)
}

func TestCatalogService_GetProduct(t *testing.T) {
	catalogDB := setupTestCatalogDB(t)
	service := NewCatalogService(catalogDB)

	seeded := seedProduct(t, catalogDB, "Kitten Teaser Wand", "Cat Toys", false)

	product, err := service.GetProduct(seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, product.ID)
	assert.Equal(t, "Kitten Teaser Wand", product.Title)
	require.Len(t, product.Variants, 1)
	assert.Equal(t, 19.90, product.Variants[0].SalePrice)

	_, err = service.GetProduct("missing-id")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrorCode(t, err))
}

func TestCatalogService_SetPublished(t *testing.T) {
	catalogDB := setupTestCatalogDB(t)
	service := NewCatalogService(catalogDB)

	seeded := seedProduct(t, catalogDB, "Pet Grooming Brush", "Brushes", false)

	product, err := service.SetPublished(seeded.ID, true)
	require.NoError(t, err)
	assert.True(t, product.Published)

	// Флаг должен быть сохранен
	stored, err := catalogDB.GetProduct(seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Published)

	// И снят обратно
	product, err = service.SetPublished(seeded.ID, false)
	require.NoError(t, err)
	assert.False(t, product.Published)

	_, err = service.SetPublished("missing-id", true)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrorCode(t, err))
}

func TestCatalogService_DeleteProduct(t *testing.T) {
	catalogDB := setupTestCatalogDB(t)
	service := NewCatalogService(catalogDB)

	seeded := seedProduct(t, catalogDB, "Automatic Pet Feeder", "Feeders", true)

	require.NoError(t, service.DeleteProduct(seeded.ID))

	stored, err := catalogDB.GetProduct(seeded.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	// Повторное удаление — 404
	err = service.DeleteProduct(seeded.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrorCode(t, err))
}

func TestCatalogService_GetStats(t *testing.T) {
	catalogDB := setupTestCatalogDB(t)
	service := NewCatalogService(catalogDB)

	seedProduct(t, catalogDB, "Interactive Dog Toy", "Dog Toys", true)
	seedProduct(t, catalogDB, "Cozy Cat Bed", "Cat Furniture", false)

	stats, err := service.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Published)
	assert.Equal(t, 2, stats.ByEnrichStatus[catalog.EnrichSuccess])
	assert.Equal(t, 2, stats.BySource[catalog.SourceSupplier])
}

func TestCatalogService_ExportProducts(t *testing.T) {
	catalogDB := setupTestCatalogDB(t)
	service := NewCatalogService(catalogDB)

	seedProduct(t, catalogDB, "Dog Training Collar", "Collars", true)
	seedProduct(t, catalogDB, "Cat Scratching Post", "Cat Furniture", false)

	path, err := service.ExportProducts(database.ProductFilter{}, catalog.FormatJSON)
	require.NoError(t, err)
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var exported struct {
		Total    int               `json:"total"`
		Products []catalog.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(data, &exported))
	assert.Equal(t, 2, exported.Total)
	assert.Len(t, exported.Products, 2)

	// Неподдерживаемый формат — ошибка валидации
	_, err = service.ExportProducts(database.ProductFilter{}, catalog.ExportFormat("xml"))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrorCode(t, err))
}
