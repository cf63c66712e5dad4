package supplier

import (
	"fmt"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v6"
)

// Размер демо-каталога
const demoCatalogSize = 24

// DemoCatalog локально сгенерированный каталог для работы без учетных
// данных поставщика: позволяет прогонять весь пайплайн импорта офлайн
type DemoCatalog struct {
	once     sync.Once
	products []Record
	byPid    map[string]int
	bySku    map[string]int
}

// NewDemoCatalog создает демо-каталог с фиксированным seed,
// чтобы повторные запуски видели одни и те же товары
func NewDemoCatalog() *DemoCatalog {
	return &DemoCatalog{}
}

var demoCategories = []string{
	"Pet Supplies > Dog Toys",
	"Pet Supplies > Cat Furniture",
	"Pet Supplies > Dog Beds",
	"Pet Supplies > Cat Toys",
	"Pet Grooming",
	"Pet Feeding > Bowls",
}

var demoNameTemplates = []string{
	"Interactive Dog Toy %s",
	"Cozy Cat Bed %s",
	"Durable Puppy Chew %s",
	"Kitten Teaser Wand %s",
	"Pet Grooming Brush %s",
	"Dog Training Collar %s",
}

// generate лениво строит каталог при первом обращении
func (d *DemoCatalog) generate() {
	d.once.Do(func() {
		faker := gofakeit.New(42)

		d.products = make([]Record, 0, demoCatalogSize)
		d.byPid = make(map[string]int, demoCatalogSize)
		d.bySku = make(map[string]int, demoCatalogSize)

		for i := 0; i < demoCatalogSize; i++ {
			pid := fmt.Sprintf("9%018d", i+1)
			sku := fmt.Sprintf("CJPT%010d", i+1)
			name := fmt.Sprintf(demoNameTemplates[i%len(demoNameTemplates)], faker.Color())
			basePrice := faker.Price(2, 60)

			variants := make([]Variant, 0, 3)
			for v := 0; v < 3; v++ {
				variants = append(variants, Variant{
					Vid:          fmt.Sprintf("%s-%02d", pid, v+1),
					VariantSku:   fmt.Sprintf("%s-%s", sku, []string{"S", "M", "L"}[v]),
					VariantKey:   fmt.Sprintf("%s-%s", faker.Color(), []string{"S", "M", "L"}[v]),
					SellPrice:    FlexPrice(basePrice + float64(v)*1.5),
					Stock:        FlexInt(faker.Number(0, 500)),
					Image:        RawField(fmt.Sprintf("https://demo.invalid/images/%s_%d.jpg", pid, v+1)),
					WarehouseTag: "CN",
				})
			}

			rec := Record{
				Pid:          pid,
				ProductSku:   sku,
				NameEn:       name,
				Description:  faker.Sentence(16),
				CategoryName: demoCategories[i%len(demoCategories)],
				SellPrice:    FlexPrice(basePrice),
				ProductImage: RawField(fmt.Sprintf("https://demo.invalid/images/%s_0.jpg", pid)),
				ProductImageSet: RawField(fmt.Sprintf(
					`["https://demo.invalid/images/%s_0.jpg","https://demo.invalid/images/%s_1.jpg"]`, pid, pid)),
				Variants: variants,
				Demo:     true,
			}

			d.byPid[pid] = len(d.products)
			d.bySku[sku] = len(d.products)
			d.products = append(d.products, rec)
		}
	})
}

// QueryByPrimaryKey ищет демо-товар по первичному ключу
func (d *DemoCatalog) QueryByPrimaryKey(pid string) (*Record, error) {
	d.generate()
	if idx, ok := d.byPid[pid]; ok {
		rec := d.products[idx]
		return &rec, nil
	}
	return nil, &NotFoundError{Input: pid, Attempts: []string{MethodPrimaryKey}}
}

// QueryBySecondaryKey ищет демо-товар по SKU
func (d *DemoCatalog) QueryBySecondaryKey(sku string) (*Record, error) {
	d.generate()
	if idx, ok := d.bySku[strings.ToUpper(sku)]; ok {
		rec := d.products[idx]
		return &rec, nil
	}
	return nil, &NotFoundError{Input: sku, Attempts: []string{MethodSecondaryKey}}
}

// SearchByName ищет демо-товар по подстроке названия
func (d *DemoCatalog) SearchByName(name string) (*Record, error) {
	d.generate()
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle != "" {
		for i := range d.products {
			if strings.Contains(strings.ToLower(d.products[i].NameEn), needle) {
				rec := d.products[i]
				return &rec, nil
			}
		}
	}
	return nil, &NotFoundError{Input: name, Attempts: []string{MethodNameSearch}}
}

// ListProducts возвращает страницу демо-каталога
func (d *DemoCatalog) ListProducts(query string, pageNum, pageSize int) ([]Record, int, error) {
	d.generate()

	filtered := d.products
	if query != "" {
		needle := strings.ToLower(query)
		filtered = nil
		for i := range d.products {
			if strings.Contains(strings.ToLower(d.products[i].NameEn), needle) {
				filtered = append(filtered, d.products[i])
			}
		}
	}

	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	start := (pageNum - 1) * pageSize
	if start >= len(filtered) {
		return nil, len(filtered), nil
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	page := make([]Record, end-start)
	copy(page, filtered[start:end])
	return page, len(filtered), nil
}

// ListVariants возвращает варианты демо-товара
func (d *DemoCatalog) ListVariants(pid string) ([]Variant, error) {
	d.generate()
	if idx, ok := d.byPid[pid]; ok {
		variants := make([]Variant, len(d.products[idx].Variants))
		copy(variants, d.products[idx].Variants)
		return variants, nil
	}
	return nil, nil
}
