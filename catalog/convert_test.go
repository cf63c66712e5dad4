package catalog

import (
	"strings"
	"testing"

	"importserver/images"
	"importserver/supplier"
)

func sampleRecord() *supplier.Record {
	return &supplier.Record{
		Pid:          "1609246140702789632",
		ProductSku:   "CJPJ177435103AZ",
		NameEn:       "Interactive Dog Chew Toy",
		Description:  "<div><p>Durable rubber toy</p><script>track()</script></div>",
		CategoryName: "Pet Supplies > Dog Toys > Chew Toys",
		SellPrice:    supplier.FlexPrice(4.50),
		Variants: []supplier.Variant{
			{Vid: "v-1", VariantSku: "CJPJ177435103AZ-Red-S", VariantKey: "Red-S", SellPrice: 4.50, Stock: 120},
			{Vid: "v-2", VariantSku: "CJPJ177435103AZ-Blue-L", VariantKey: "Blue-L", SellPrice: 5.20, Stock: 15},
		},
	}
}

func sampleMedia() *images.Result {
	return &images.Result{
		MainURL:       "https://cf.cjdropshipping.com/main.jpg",
		MainLocalPath: "/cache/p1_abcdef12.jpg",
		GalleryURLs:   []string{"https://cf.cjdropshipping.com/g1.jpg"},
		GalleryLocal:  []string{"/cache/p1_deadbeef.jpg"},
		Candidates:    []images.Candidate{{URL: "https://cf.cjdropshipping.com/main.jpg", Valid: true}},
		Checked:       2,
		ValidCount:    2,
		Downloaded:    2,
	}
}

func TestConvert_FullRecord(t *testing.T) {
	conv := NewConverter(DefaultPricingConfig())
	rec := sampleRecord()

	product, err := conv.Convert(rec, sampleMedia())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if product.ID == "" {
		t.Error("product ID is empty")
	}
	if product.SupplierPid != rec.Pid {
		t.Errorf("SupplierPid = %q, want %q", product.SupplierPid, rec.Pid)
	}
	if product.SupplierSku != rec.ProductSku {
		t.Errorf("SupplierSku = %q, want %q", product.SupplierSku, rec.ProductSku)
	}
	if product.Title != "Interactive Dog Chew Toy" {
		t.Errorf("Title = %q", product.Title)
	}
	if product.Description != "Durable rubber toy" {
		t.Errorf("Description = %q, want HTML stripped", product.Description)
	}
	if product.Category != "Chew Toys" {
		t.Errorf("Category = %q, want last segment", product.Category)
	}
	if product.MainImage != "/cache/p1_abcdef12.jpg" {
		t.Errorf("MainImage = %q", product.MainImage)
	}
	if product.ImageStatus != ImageOK {
		t.Errorf("ImageStatus = %q, want %q", product.ImageStatus, ImageOK)
	}
	if product.EnrichStatus != EnrichSuccess {
		t.Errorf("EnrichStatus = %q, want %q", product.EnrichStatus, EnrichSuccess)
	}
	if product.Source != SourceSupplier {
		t.Errorf("Source = %q, want %q", product.Source, SourceSupplier)
	}
	if len(product.Variants) != 2 {
		t.Fatalf("got %d variants, want 2", len(product.Variants))
	}

	// Цена товара — минимальная розничная цена его вариантов
	cheaper := conv.pricing.SalePrice(4.50, "Chew Toys")
	if product.Price != cheaper {
		t.Errorf("Price = %v, want cheapest variant price %v", product.Price, cheaper)
	}
	if product.ImportedAt.IsZero() || product.UpdatedAt.IsZero() {
		t.Error("timestamps are not set")
	}
}

// Товар без единой картинки конвертируется со статусом missing,
// а не падает с ошибкой
func TestConvert_NoImagesStillConverts(t *testing.T) {
	conv := NewConverter(DefaultPricingConfig())

	for _, media := range []*images.Result{nil, {}} {
		product, err := conv.Convert(sampleRecord(), media)
		if err != nil {
			t.Fatalf("Convert without images: %v", err)
		}
		if product.ImageStatus != ImageMissing {
			t.Errorf("ImageStatus = %q, want %q", product.ImageStatus, ImageMissing)
		}
		if product.EnrichStatus != EnrichPending {
			t.Errorf("EnrichStatus = %q, want %q", product.EnrichStatus, EnrichPending)
		}
		if product.MainImage != "" {
			t.Errorf("MainImage = %q, want empty", product.MainImage)
		}
	}
}

func TestConvert_RequiresIdentity(t *testing.T) {
	conv := NewConverter(DefaultPricingConfig())

	if _, err := conv.Convert(nil, nil); err == nil {
		t.Error("nil record: expected error")
	}

	rec := &supplier.Record{NameEn: "Nameless"}
	if _, err := conv.Convert(rec, nil); err == nil {
		t.Error("record without pid and sku: expected error")
	}
}

// Карточка без вариантов дает один синтетический вариант
// из полей самой карточки
func TestConvert_SyntheticVariant(t *testing.T) {
	conv := NewConverter(DefaultPricingConfig())
	rec := sampleRecord()
	rec.Variants = nil

	product, err := conv.Convert(rec, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(product.Variants) != 1 {
		t.Fatalf("got %d variants, want 1 synthetic", len(product.Variants))
	}

	v := product.Variants[0]
	if v.SKU != rec.ProductSku {
		t.Errorf("SKU = %q, want %q", v.SKU, rec.ProductSku)
	}
	if v.CostPrice != 4.50 {
		t.Errorf("CostPrice = %v, want 4.50", v.CostPrice)
	}
	if v.SalePrice <= v.CostPrice {
		t.Errorf("SalePrice %v is not above cost %v", v.SalePrice, v.CostPrice)
	}
	if product.Price != v.SalePrice {
		t.Errorf("Price = %v, want %v", product.Price, v.SalePrice)
	}
}

func TestConvert_VariantFallbacks(t *testing.T) {
	conv := NewConverter(DefaultPricingConfig())
	rec := sampleRecord()
	// Первый вариант без SKU и цены, второй с кривой ценой
	rec.Variants = []supplier.Variant{
		{VariantKey: "Green"},
		{VariantSku: "X-2", SellPrice: -1},
	}

	product, err := conv.Convert(rec, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if got := product.Variants[0].SKU; got != rec.ProductSku+"-1" {
		t.Errorf("synthetic SKU = %q, want %q", got, rec.ProductSku+"-1")
	}
	// Цена варианта без своей цены наследуется от карточки
	for i, v := range product.Variants {
		if v.CostPrice != 4.50 {
			t.Errorf("variant %d: CostPrice = %v, want inherited 4.50", i, v.CostPrice)
		}
	}
}

// Розничная цена варианта всегда выводится функцией ценообразования
// и никогда не копируется у поставщика
func TestConvert_SalePriceIsDerived(t *testing.T) {
	conv := NewConverter(DefaultPricingConfig())

	product, err := conv.Convert(sampleRecord(), nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	for _, v := range product.Variants {
		want := conv.pricing.SalePrice(v.CostPrice, product.Category)
		if v.SalePrice != want {
			t.Errorf("variant %s: SalePrice = %v, want derived %v", v.SKU, v.SalePrice, want)
		}
		if v.SalePrice == v.CostPrice {
			t.Errorf("variant %s: sale price equals supplier cost", v.SKU)
		}
	}
}

func TestConvert_DemoSource(t *testing.T) {
	conv := NewConverter(DefaultPricingConfig())
	rec := sampleRecord()
	rec.Demo = true

	product, err := conv.Convert(rec, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if product.Source != SourceDemo {
		t.Errorf("Source = %q, want %q", product.Source, SourceDemo)
	}
}

func TestCleanTitle(t *testing.T) {
	conv := NewConverter(DefaultPricingConfig())

	tests := []struct {
		name string
		rec  supplier.Record
		want string
	}{
		{"normal", supplier.Record{NameEn: "Pet Water Fountain"}, "Pet Water Fountain"},
		{"collapses whitespace", supplier.Record{NameEn: "  Dog \t Chew   Toy "}, "Dog Chew Toy"},
		{"shouting caps", supplier.Record{NameEn: "DOG CHEW TOY"}, "Dog Chew Toy"},
		{"mixed case kept", supplier.Record{NameEn: "USB Pet Feeder"}, "USB Pet Feeder"},
		{"empty falls back to sku", supplier.Record{ProductSku: "CJPJ123"}, "CJPJ123"},
		{"empty falls back to pid", supplier.Record{Pid: "42"}, "Product 42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := conv.cleanTitle(&tt.rec); got != tt.want {
				t.Errorf("cleanTitle = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanCategory(t *testing.T) {
	conv := NewConverter(DefaultPricingConfig())

	tests := []struct {
		raw  string
		want string
	}{
		{"Pet Supplies > Dog Toys > Chew Toys", "Chew Toys"},
		{"Home/Garden/Planters", "Planters"},
		{"Toys", "Toys"},
		{"  Cat  Beds  ", "Cat Beds"},
		{"", defaultCategory},
		{"   ", defaultCategory},
		{"A > ", defaultCategory},
	}

	for _, tt := range tests {
		if got := conv.cleanCategory(tt.raw); got != tt.want {
			t.Errorf("cleanCategory(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseVariantOptions(t *testing.T) {
	tests := []struct {
		key  string
		want map[string]string
	}{
		{"Red-XL", map[string]string{"option1": "Red", "option2": "XL"}},
		{"Blue", map[string]string{"option1": "Blue"}},
		{"Red-XL-Long", map[string]string{"option1": "Red", "option2": "XL", "option3": "Long"}},
		{"", nil},
		{" - ", nil},
	}

	for _, tt := range tests {
		got := parseVariantOptions(tt.key)
		if len(got) != len(tt.want) {
			t.Errorf("parseVariantOptions(%q) = %v, want %v", tt.key, got, tt.want)
			continue
		}
		for k, v := range tt.want {
			if got[k] != v {
				t.Errorf("parseVariantOptions(%q)[%s] = %q, want %q", tt.key, k, got[k], v)
			}
		}
	}
}

func TestConvert_VariantImageNormalized(t *testing.T) {
	conv := NewConverter(DefaultPricingConfig())
	rec := sampleRecord()
	rec.Variants[0].Image = "//cf.cjdropshipping.com/variant.jpg"
	rec.Variants[1].Image = "not an url at all"

	product, err := conv.Convert(rec, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got := product.Variants[0].Image; got != "https://cf.cjdropshipping.com/variant.jpg" {
		t.Errorf("variant image = %q, want normalized form", got)
	}
	if got := product.Variants[1].Image; got != "" {
		t.Errorf("garbage variant image = %q, want empty", got)
	}
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"plain text", "Just   a   description", "Just a description"},
		{"strips markup", "<div><p>Soft</p><p>and durable</p></div>", "Soft and durable"},
		{"drops scripts", "<p>Toy</p><script>alert(1)</script><style>p{}</style>", "Toy"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlToText(tt.html); got != tt.want {
				t.Errorf("htmlToText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsMostlyUpper(t *testing.T) {
	if !isMostlyUpper("DOG CHEW TOY 2024") {
		t.Error("all-caps title should be detected")
	}
	if isMostlyUpper("USB Pet Feeder") {
		t.Error("an acronym inside a normal title is not shouting")
	}
	if isMostlyUpper("1234 5678") {
		t.Error("digits alone are not shouting")
	}
}

func TestCheapestSalePrice(t *testing.T) {
	variants := []Variant{
		{SalePrice: 12.99},
		{SalePrice: 9.99},
		{SalePrice: 0}, // нулевые цены не участвуют
		{SalePrice: 24.99},
	}
	if got := cheapestSalePrice(variants); got != 9.99 {
		t.Errorf("cheapestSalePrice = %v, want 9.99", got)
	}
	if got := cheapestSalePrice(nil); got != 0 {
		t.Errorf("cheapestSalePrice(nil) = %v, want 0", got)
	}
}

func TestConvert_ProductJSONShape(t *testing.T) {
	conv := NewConverter(DefaultPricingConfig())
	product, err := conv.Convert(sampleRecord(), sampleMedia())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	// Витрина и экспорт полагаются на стабильные имена полей
	if !strings.Contains(product.Variants[0].SKU, "CJPJ177435103AZ") {
		t.Errorf("variant SKU lost the supplier prefix: %q", product.Variants[0].SKU)
	}
	if product.Variants[0].Options["option1"] != "Red" {
		t.Errorf("options not parsed: %v", product.Variants[0].Options)
	}
}
