package catalog

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"importserver/images"
	"importserver/supplier"
)

// Категория по умолчанию, когда поставщик не прислал свою
const defaultCategory = "Pet Supplies"

// Converter превращает карточку поставщика и результат разрешения
// изображений в товар внутреннего каталога
type Converter struct {
	pricing PricingConfig
	titler  cases.Caser
	logger  *slog.Logger
}

// NewConverter создает конвертер с заданными правилами ценообразования
func NewConverter(pricing PricingConfig) *Converter {
	return &Converter{
		pricing: pricing,
		titler:  cases.Title(language.English),
		logger:  slog.Default().With("component", "catalog-converter"),
	}
}

// Convert собирает товар каталога из карточки поставщика.
//
// Кривые или отсутствующие поля деградируют до разумных значений
// и никогда не валят конвертацию целиком; ошибка возможна только когда
// у карточки нет вообще никакого идентификатора. Товар без единой
// картинки конвертируется со статусом ImageMissing
func (c *Converter) Convert(rec *supplier.Record, media *images.Result) (*Product, error) {
	if rec == nil {
		return nil, fmt.Errorf("supplier record is nil")
	}
	if rec.Pid == "" && rec.ProductSku == "" {
		return nil, fmt.Errorf("supplier record has no identity: both pid and sku are empty")
	}
	if media == nil {
		media = &images.Result{}
	}

	category := c.cleanCategory(rec.CategoryName)
	variants := c.buildVariants(rec, category)

	now := time.Now()
	product := &Product{
		ID:          uuid.New().String(),
		SupplierPid: rec.Pid,
		SupplierSku: rec.ProductSku,

		Title:       c.cleanTitle(rec),
		Description: htmlToText(rec.Description),
		Category:    category,

		Price: cheapestSalePrice(variants),

		MainImage:    media.MainLocalPath,
		MainImageURL: media.MainURL,
		Gallery:      media.GalleryLocal,
		GalleryURLs:  media.GalleryURLs,

		Variants: variants,

		ImageStatus: media.ImageStatus(),
		Source:      SourceSupplier,

		ImportedAt: now,
		UpdatedAt:  now,
	}

	if rec.Demo {
		product.Source = SourceDemo
	}

	// Успешно обогащен только товар, у которого есть хотя бы одно
	// локальное изображение
	if product.HasLocalImages() {
		product.EnrichStatus = EnrichSuccess
	} else {
		product.EnrichStatus = EnrichPending
	}

	return product, nil
}

// cleanTitle чистит название: схлопывает пробелы, переводит крик
// капсом в нормальный регистр заголовка
func (c *Converter) cleanTitle(rec *supplier.Record) string {
	title := strings.Join(strings.Fields(rec.NameEn), " ")
	if title == "" {
		if rec.ProductSku != "" {
			return rec.ProductSku
		}
		return "Product " + rec.Pid
	}

	if isMostlyUpper(title) {
		title = c.titler.String(strings.ToLower(title))
	}
	return title
}

// cleanCategory берет последний сегмент категории поставщика:
// "Pet Supplies > Dog Toys > Chew Toys" -> "Chew Toys"
func (c *Converter) cleanCategory(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultCategory
	}

	for _, sep := range []string{">", "/"} {
		if strings.Contains(raw, sep) {
			parts := strings.Split(raw, sep)
			raw = parts[len(parts)-1]
		}
	}

	category := strings.Join(strings.Fields(raw), " ")
	if category == "" {
		return defaultCategory
	}
	return category
}

// buildVariants строит варианты каталога. Карточка без вариантов дает
// один синтетический вариант из полей самой карточки
func (c *Converter) buildVariants(rec *supplier.Record, category string) []Variant {
	baseSku := rec.ProductSku
	if baseSku == "" {
		baseSku = rec.Pid
	}

	if len(rec.Variants) == 0 {
		cost := float64(rec.SellPrice)
		return []Variant{{
			SKU:       baseSku,
			CostPrice: cost,
			SalePrice: c.pricing.SalePrice(cost, category),
		}}
	}

	variants := make([]Variant, 0, len(rec.Variants))
	for i, v := range rec.Variants {
		sku := v.VariantSku
		if sku == "" {
			sku = fmt.Sprintf("%s-%d", baseSku, i+1)
		}

		cost := float64(v.SellPrice)
		if cost <= 0 {
			cost = float64(rec.SellPrice)
		}

		variants = append(variants, Variant{
			SKU:         sku,
			SupplierVid: v.Vid,
			Options:     parseVariantOptions(v.VariantKey),
			CostPrice:   cost,
			SalePrice:   c.pricing.SalePrice(cost, category),
			Stock:       int(v.Stock),
			Image:       normalizedVariantImage(string(v.Image)),
			Warehouse:   v.WarehouseTag,
		})
	}
	return variants
}

// Reprice обновляет цены и остатки товара по свежим вариантам поставщика.
// Варианты сопоставляются по vid, затем по SKU; несовпавшие остаются
// нетронутыми. Возвращает true, если хоть один вариант обновился
func (c *Converter) Reprice(p *Product, fresh []supplier.Variant) bool {
	if p == nil || len(fresh) == 0 {
		return false
	}

	byVid := make(map[string]*supplier.Variant, len(fresh))
	bySku := make(map[string]*supplier.Variant, len(fresh))
	for i := range fresh {
		v := &fresh[i]
		if v.Vid != "" {
			byVid[v.Vid] = v
		}
		if v.VariantSku != "" {
			bySku[v.VariantSku] = v
		}
	}

	updated := false
	for i := range p.Variants {
		pv := &p.Variants[i]

		src := byVid[pv.SupplierVid]
		if src == nil {
			src = bySku[pv.SKU]
		}
		if src == nil {
			continue
		}

		cost := float64(src.SellPrice)
		if cost <= 0 {
			cost = pv.CostPrice
		}

		pv.CostPrice = cost
		pv.SalePrice = c.pricing.SalePrice(cost, p.Category)
		pv.Stock = int(src.Stock)
		updated = true
	}

	if updated {
		p.Price = cheapestSalePrice(p.Variants)
	}
	return updated
}

// parseVariantOptions разбирает ключ варианта "Red-XL" в опции
func parseVariantOptions(key string) map[string]string {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	parts := strings.Split(key, "-")
	options := make(map[string]string, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		options[fmt.Sprintf("option%d", i+1)] = part
	}
	if len(options) == 0 {
		return nil
	}
	return options
}

// normalizedVariantImage нормализует URL изображения варианта;
// мусор превращается в пустую строку
func normalizedVariantImage(raw string) string {
	urls := images.ParseImageField(raw)
	if len(urls) == 0 {
		return ""
	}
	normalized, ok := images.NormalizeURL(urls[0], "")
	if !ok {
		return ""
	}
	return normalized
}

// cheapestSalePrice цена товара — минимальная цена его вариантов
func cheapestSalePrice(variants []Variant) float64 {
	price := 0.0
	for _, v := range variants {
		if v.SalePrice > 0 && (price == 0 || v.SalePrice < price) {
			price = v.SalePrice
		}
	}
	return price
}

// htmlToText вытаскивает чистый текст из HTML описания поставщика
func htmlToText(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}
	if !strings.Contains(html, "<") {
		return strings.Join(strings.Fields(html), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	doc.Find("script, style").Remove()

	return strings.Join(strings.Fields(doc.Text()), " ")
}

// isMostlyUpper больше ли в строке заглавных букв, чем строчных
func isMostlyUpper(s string) bool {
	var upper, lower int
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		}
	}
	return upper > 0 && upper > lower*3
}
