package database

import (
	"testing"
	"time"

	"importserver/catalog"
)

func newTestCatalogDB(t *testing.T) *CatalogDB {
	t.Helper()

	db, err := NewCatalogDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create catalog DB: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func testProduct(pid string) *catalog.Product {
	return &catalog.Product{
		SupplierPid: pid,
		SupplierSku: "SKU-" + pid,
		Title:       "Dog Chew Toy " + pid,
		Description: "Durable rubber toy",
		Category:    "Chew Toys",
		PetType:     "dog",
		Price:       17.99,
		MainImage:   "/cache/" + pid + "_abcdef12.jpg",
		Gallery:     []string{"/cache/" + pid + "_deadbeef.jpg"},
		GalleryURLs: []string{"https://cf.cjdropshipping.com/g1.jpg"},
		Variants: []catalog.Variant{
			{SKU: pid + "-Red-S", CostPrice: 4.5, SalePrice: 17.99, Stock: 10, Options: map[string]string{"option1": "Red", "option2": "S"}},
		},
		Eligibility:  catalog.Eligibility{OK: true},
		EnrichStatus: catalog.EnrichSuccess,
		ImageStatus:  catalog.ImageOK,
		Source:       catalog.SourceSupplier,
		Published:    true,
	}
}

func TestCatalogDB_UpsertAndGet(t *testing.T) {
	db := newTestCatalogDB(t)

	p := testProduct("1609246140702789632")
	if err := db.UpsertProduct(p); err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}
	if p.ID == "" {
		t.Fatal("upsert did not assign an id")
	}
	if p.ImportedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Fatal("upsert did not set timestamps")
	}

	got, err := db.GetProduct(p.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got == nil {
		t.Fatal("GetProduct returned nil for an existing product")
	}

	if got.SupplierPid != p.SupplierPid || got.Title != p.Title || got.Price != p.Price {
		t.Errorf("scalar fields lost: %+v", got)
	}
	if len(got.Variants) != 1 || got.Variants[0].Options["option1"] != "Red" {
		t.Errorf("variants JSON did not survive the round trip: %+v", got.Variants)
	}
	if len(got.Gallery) != 1 || got.Gallery[0] != p.Gallery[0] {
		t.Errorf("gallery JSON did not survive the round trip: %+v", got.Gallery)
	}
	if !got.Eligibility.OK {
		t.Error("eligibility JSON did not survive the round trip")
	}
	if !got.Published {
		t.Error("published flag lost")
	}
}

// Повторный импорт того же товара поставщика сохраняет внутренний id
// и дату первого импорта
func TestCatalogDB_UpsertPreservesIdentity(t *testing.T) {
	db := newTestCatalogDB(t)

	first := testProduct("777")
	if err := db.UpsertProduct(first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := testProduct("777")
	second.Title = "Updated Title"
	second.Price = 21.99
	if err := db.UpsertProduct(second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("internal id changed on re-import: %s -> %s", first.ID, second.ID)
	}
	if d := second.ImportedAt.Sub(first.ImportedAt); d > time.Second || d < -time.Second {
		t.Errorf("imported_at changed on re-import: %v -> %v", first.ImportedAt, second.ImportedAt)
	}

	got, err := db.GetProductBySupplierPid("777")
	if err != nil {
		t.Fatalf("GetProductBySupplierPid: %v", err)
	}
	if got.Title != "Updated Title" || got.Price != 21.99 {
		t.Errorf("update did not apply: %+v", got)
	}

	count, err := db.CountProducts(ProductFilter{})
	if err != nil {
		t.Fatalf("CountProducts: %v", err)
	}
	if count != 1 {
		t.Errorf("re-import duplicated the product: count = %d", count)
	}
}

func TestCatalogDB_GetMissingProduct(t *testing.T) {
	db := newTestCatalogDB(t)

	got, err := db.GetProduct("no-such-id")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for a missing product, got %+v", got)
	}
}

func TestCatalogDB_UpsertRejectsBrokenProduct(t *testing.T) {
	db := newTestCatalogDB(t)

	if err := db.UpsertProduct(nil); err == nil {
		t.Error("nil product: expected error")
	}
	if err := db.UpsertProduct(&catalog.Product{Title: "No identity"}); err == nil {
		t.Error("product without supplier_pid: expected error")
	}
}

func TestCatalogDB_ListProductsFilters(t *testing.T) {
	db := newTestCatalogDB(t)

	dog := testProduct("100")
	cat := testProduct("200")
	cat.Title = "Cat Scratching Post"
	cat.PetType = "cat"
	cat.Category = "Cat Furniture"
	cat.Published = false
	cat.EnrichStatus = catalog.EnrichPending
	cat.ImageStatus = catalog.ImageMissing
	demo := testProduct("300")
	demo.Source = catalog.SourceDemo

	for _, p := range []*catalog.Product{dog, cat, demo} {
		if err := db.UpsertProduct(p); err != nil {
			t.Fatalf("UpsertProduct: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter ProductFilter
		want   int
	}{
		{"без фильтра", ProductFilter{}, 3},
		{"по типу животного", ProductFilter{PetType: "cat"}, 1},
		{"по категории", ProductFilter{Category: "Chew Toys"}, 2},
		{"только опубликованные", ProductFilter{OnlyPublished: true}, 2},
		{"по статусу обогащения", ProductFilter{EnrichStatus: catalog.EnrichPending}, 1},
		{"по статусу изображений", ProductFilter{ImageStatus: catalog.ImageMissing}, 1},
		{"по источнику", ProductFilter{Source: catalog.SourceDemo}, 1},
		{"поиск по названию", ProductFilter{Search: "Scratching"}, 1},
		{"комбинация условий", ProductFilter{PetType: "dog", OnlyPublished: true}, 2},
		{"пустая выборка", ProductFilter{PetType: "bird"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, err := db.ListProducts(tt.filter)
			if err != nil {
				t.Fatalf("ListProducts: %v", err)
			}
			if len(products) != tt.want {
				t.Errorf("got %d products, want %d", len(products), tt.want)
			}

			count, err := db.CountProducts(tt.filter)
			if err != nil {
				t.Fatalf("CountProducts: %v", err)
			}
			if count != tt.want {
				t.Errorf("CountProducts = %d, want %d", count, tt.want)
			}
		})
	}
}

func TestCatalogDB_ListProductsLimitOffset(t *testing.T) {
	db := newTestCatalogDB(t)

	for _, pid := range []string{"1", "2", "3"} {
		if err := db.UpsertProduct(testProduct(pid)); err != nil {
			t.Fatalf("UpsertProduct: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	page, err := db.ListProducts(ProductFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d products, want 2", len(page))
	}
	// Свежие первыми
	if page[0].SupplierPid != "3" {
		t.Errorf("first product = %s, want the most recently updated", page[0].SupplierPid)
	}

	rest, err := db.ListProducts(ProductFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListProducts with offset: %v", err)
	}
	if len(rest) != 1 || rest[0].SupplierPid != "1" {
		t.Errorf("offset page wrong: %+v", rest)
	}
}

func TestCatalogDB_SetPublished(t *testing.T) {
	db := newTestCatalogDB(t)

	p := testProduct("42")
	p.Published = false
	if err := db.UpsertProduct(p); err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}

	if err := db.SetPublished(p.ID, true); err != nil {
		t.Fatalf("SetPublished: %v", err)
	}
	got, _ := db.GetProduct(p.ID)
	if !got.Published {
		t.Error("published flag not set")
	}

	if err := db.SetPublished("no-such-id", true); err == nil {
		t.Error("SetPublished on missing product: expected error")
	}
}

func TestCatalogDB_DeleteProduct(t *testing.T) {
	db := newTestCatalogDB(t)

	p := testProduct("del")
	if err := db.UpsertProduct(p); err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}
	if err := db.DeleteProduct(p.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}

	got, err := db.GetProduct(p.ID)
	if err != nil || got != nil {
		t.Errorf("product still present after delete: %+v, err %v", got, err)
	}
	if err := db.DeleteProduct(p.ID); err == nil {
		t.Error("second delete: expected error")
	}
}

func TestCatalogDB_AllSupplierPids(t *testing.T) {
	db := newTestCatalogDB(t)

	for _, pid := range []string{"a", "b", "c"} {
		if err := db.UpsertProduct(testProduct(pid)); err != nil {
			t.Fatalf("UpsertProduct: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	pids, err := db.AllSupplierPids()
	if err != nil {
		t.Fatalf("AllSupplierPids: %v", err)
	}
	if len(pids) != 3 || pids[0] != "a" || pids[2] != "c" {
		t.Errorf("pids = %v, want [a b c] in import order", pids)
	}
}

func TestCatalogDB_GetStats(t *testing.T) {
	db := newTestCatalogDB(t)

	published := testProduct("1")
	draft := testProduct("2")
	draft.Published = false
	draft.EnrichStatus = catalog.EnrichPending
	draft.ImageStatus = catalog.ImageMissing
	draft.Source = catalog.SourceDemo

	for _, p := range []*catalog.Product{published, draft} {
		if err := db.UpsertProduct(p); err != nil {
			t.Fatalf("UpsertProduct: %v", err)
		}
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	if stats.Total != 2 || stats.Published != 1 {
		t.Errorf("total/published = %d/%d, want 2/1", stats.Total, stats.Published)
	}
	if stats.ByEnrichStatus[catalog.EnrichSuccess] != 1 || stats.ByEnrichStatus[catalog.EnrichPending] != 1 {
		t.Errorf("ByEnrichStatus = %v", stats.ByEnrichStatus)
	}
	if stats.ByImageStatus[catalog.ImageMissing] != 1 {
		t.Errorf("ByImageStatus = %v", stats.ByImageStatus)
	}
	if stats.BySource[catalog.SourceDemo] != 1 {
		t.Errorf("BySource = %v", stats.BySource)
	}
}
