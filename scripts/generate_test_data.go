package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/brianvoe/gofakeit/v6"

	"importserver/catalog"
	"importserver/database"
	"importserver/supplier"
)

// TestDataset набор тестовых карточек поставщика
type TestDataset struct {
	Count   int               `json:"count"`
	Records []supplier.Record `json:"records"`
}

var testCategories = []string{
	"Pet Supplies > Dog Toys",
	"Pet Supplies > Dog Toys > Chew Toys",
	"Pet Supplies > Cat Furniture",
	"Pet Supplies > Cat Toys",
	"Pet Supplies > Dog Beds",
	"Pet Grooming > Brushes",
	"Pet Feeding > Bowls",
	"Pet Feeding > Automatic Feeders",
}

var testNameTemplates = []string{
	"Interactive Dog Toy %s",
	"Cozy Cat Bed %s",
	"Durable Puppy Chew %s",
	"Kitten Teaser Wand %s",
	"Pet Grooming Brush %s",
	"Dog Training Collar %s",
	"Cat Scratching Post %s",
	"Automatic Pet Feeder %s",
}

func main() {
	// Инициализируем gofakeit
	gofakeit.Seed(0)

	// Размеры наборов данных
	sizes := []struct {
		name string
		size int
	}{
		{"1K", 1000},
		{"10K", 10000},
		{"50K", 50000},
	}

	// Создаем директорию для тестовых данных
	dataDir := filepath.Join("data", "testdata")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	for _, size := range sizes {
		fmt.Printf("Generating %s supplier records...\n", size.name)

		records := make([]supplier.Record, size.size)
		for i := 0; i < size.size; i++ {
			records[i] = generateSupplierRecord(i)
		}

		dataset := TestDataset{
			Count:   size.size,
			Records: records,
		}

		// Сохраняем в JSON
		filename := filepath.Join(dataDir, fmt.Sprintf("supplier_records_%s.json", size.name))
		data, err := json.MarshalIndent(dataset, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal dataset: %v", err)
		}

		if err := os.WriteFile(filename, data, 0644); err != nil {
			log.Fatalf("Failed to write file %s: %v", filename, err)
		}

		fmt.Printf("Generated %s records in %s\n", size.name, filename)
	}

	// Также создаем базу каталога с тестовыми товарами
	fmt.Println("\nGenerating catalog database...")
	generateCatalogDB(dataDir)
}

// generateSupplierRecord генерирует карточку поставщика с вариантами
func generateSupplierRecord(i int) supplier.Record {
	pid := fmt.Sprintf("7%018d", i+1)
	sku := fmt.Sprintf("CJPT%010d", i+1)
	name := fmt.Sprintf(testNameTemplates[i%len(testNameTemplates)], gofakeit.Color())
	basePrice := gofakeit.Price(1.5, 80)

	// Четверть карточек без вариантов: конвертер строит синтетический
	var variants []supplier.Variant
	if i%4 != 0 {
		sizeTags := []string{"S", "M", "L"}
		variants = make([]supplier.Variant, 0, len(sizeTags))
		for v, tag := range sizeTags {
			variants = append(variants, supplier.Variant{
				Vid:          fmt.Sprintf("%s-%02d", pid, v+1),
				VariantSku:   fmt.Sprintf("%s-%s", sku, tag),
				VariantKey:   fmt.Sprintf("%s-%s", gofakeit.Color(), tag),
				SellPrice:    supplier.FlexPrice(basePrice + float64(v)*1.5),
				Stock:        supplier.FlexInt(gofakeit.Number(0, 500)),
				Image:        supplier.RawField(fmt.Sprintf("https://cf.example-cdn.com/images/%s_%d.jpg", pid, v+1)),
				WarehouseTag: "CN",
			})
		}
	}

	return supplier.Record{
		Pid:          pid,
		ProductSku:   sku,
		NameEn:       name,
		Description:  fmt.Sprintf("<p>%s</p>", gofakeit.Sentence(20)),
		CategoryName: testCategories[i%len(testCategories)],
		SellPrice:    supplier.FlexPrice(basePrice),
		ProductImage: supplier.RawField(fmt.Sprintf("https://cf.example-cdn.com/images/%s_0.jpg", pid)),
		ProductImageSet: supplier.RawField(fmt.Sprintf(
			`["https://cf.example-cdn.com/images/%s_0.jpg","https://cf.example-cdn.com/images/%s_1.jpg"]`, pid, pid)),
		Variants: variants,
	}
}

// generateCatalogDB создает базу каталога, прогоняя тестовые карточки
// через конвертер
func generateCatalogDB(dataDir string) {
	dbPath := filepath.Join(dataDir, "test_catalog.db")

	// Удаляем существующую БД
	os.Remove(dbPath)

	db, err := database.NewCatalogDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to create catalog database: %v", err)
	}
	defer db.Close()

	converter := catalog.NewConverter(catalog.DefaultPricingConfig())

	// 1000 товаров достаточно для быстрых прогонов
	for i := 0; i < 1000; i++ {
		rec := generateSupplierRecord(i)

		product, err := converter.Convert(&rec, nil)
		if err != nil {
			log.Fatalf("Failed to convert record %d: %v", i+1, err)
		}

		// Часть каталога публикуем, чтобы фильтры было на чем гонять
		product.Published = i%3 == 0

		if err := db.UpsertProduct(product); err != nil {
			log.Fatalf("Failed to upsert product %d: %v", i+1, err)
		}
	}

	fmt.Printf("Generated catalog database with 1000 products in %s\n", dbPath)
}
