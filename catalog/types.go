// Package catalog определяет внутреннюю схему каталога и конвертацию
// карточек поставщика в неё: очистку текста, расчет розничных цен
// и сведение статусов обогащения.
package catalog

import "time"

// Статусы обогащения товара
const (
	EnrichPending = "pending"
	EnrichSuccess = "success"
	EnrichFailed  = "failed"
)

// Статусы разрешения изображений
const (
	ImageOK             = "ok"
	ImagePartial        = "partial"
	ImageMissing        = "missing"
	ImageDownloadFailed = "download_failed"
	ImageUnvalidated    = "unvalidated"
)

// Источники товаров каталога
const (
	SourceSupplier = "supplier"
	SourceDemo     = "demo"
)

// Eligibility вердикт внешнего гейта допуска
type Eligibility struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Variant вариант товара каталога. SalePrice всегда выводится из CostPrice
// функцией ценообразования и никогда не берется у поставщика напрямую
type Variant struct {
	SKU         string            `json:"sku"`
	SupplierVid string            `json:"supplier_vid,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
	CostPrice   float64           `json:"cost_price"`
	SalePrice   float64           `json:"sale_price"`
	Stock       int               `json:"stock"`
	Image       string            `json:"image,omitempty"`
	Warehouse   string            `json:"warehouse,omitempty"`
}

// Product карточка внутреннего каталога — единственная персистируемая
// форма данных поставщика.
//
// MainImage и Gallery — локальные пути кэша; непустые только после
// успешной сетевой проверки и скачивания. MainImageURL хранит исходный
// адрес для витрины, когда локальной копии (еще) нет
type Product struct {
	ID          string `json:"id"`
	SupplierPid string `json:"supplier_pid"`
	SupplierSku string `json:"supplier_sku,omitempty"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	PetType     string `json:"pet_type,omitempty"`

	Price float64 `json:"price"`

	MainImage    string   `json:"main_image,omitempty"`
	MainImageURL string   `json:"main_image_url,omitempty"`
	Gallery      []string `json:"gallery,omitempty"`
	GalleryURLs  []string `json:"gallery_urls,omitempty"`

	Variants []Variant `json:"variants,omitempty"`

	Eligibility  Eligibility `json:"eligibility"`
	EnrichStatus string      `json:"enrich_status"`
	ImageStatus  string      `json:"image_status"`
	Source       string      `json:"source"`
	Published    bool        `json:"published"`

	ImportedAt time.Time `json:"imported_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasLocalImages есть ли у товара хоть одно скачанное изображение
func (p *Product) HasLocalImages() bool {
	return p.MainImage != "" || len(p.Gallery) > 0
}
