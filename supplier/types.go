// Package supplier реализует интеграцию с API поставщика (CJ Dropshipping v2):
// авторизацию с кэшированием токена, классификацию идентификаторов товаров
// и выборку карточек с цепочками fallback-поисков.
package supplier

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Config конфигурация клиента API поставщика
type Config struct {
	BaseURL         string        `json:"base_url"`
	Email           string        `json:"email"`
	Password        string        `json:"-"`
	Timeout         time.Duration `json:"timeout"`
	RateLimitPerSec float64       `json:"rate_limit_per_sec"`
	MaxAttempts     int           `json:"max_attempts"`
	TokenCachePath  string        `json:"token_cache_path"`
}

// DemoMode включен, когда учетные данные поставщика не заданы:
// клиент отдает локально сгенерированный каталог вместо сетевых вызовов
func (c Config) DemoMode() bool {
	return c.Email == "" || c.Password == ""
}

// envelope конверт ответа API: {code, result, message, data}.
// Успех только при внутреннем code == 200; любой другой код в HTTP-200
// ответе означает "нет данных", а не транспортную ошибку
type envelope struct {
	Code    int             `json:"code"`
	Result  bool            `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// FlexPrice цена, которая в ответах встречается числом, строкой
// или диапазоном "1.23 -- 4.56" (берется нижняя граница)
type FlexPrice float64

// UnmarshalJSON реализует json.Unmarshaler
func (p *FlexPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*p = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = FlexPrice(parsePriceString(s))
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		// Поле пришло неожиданного типа: деградируем до нуля,
		// кривая цена не должна ронять разбор всей карточки
		*p = 0
		return nil
	}
	*p = FlexPrice(f)
	return nil
}

// parsePriceString извлекает число из строки цены, включая диапазоны "--"
func parsePriceString(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if idx := strings.Index(s, "--"); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	s = strings.TrimPrefix(s, "$")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// FlexInt количество, которое встречается и числом, и строкой
type FlexInt int

// UnmarshalJSON реализует json.Unmarshaler
func (n *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			*n = 0
			return nil
		}
		*n = FlexInt(v)
		return nil
	}

	// Количество может прийти и как 85, и как 85.0
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*n = 0
		return nil
	}
	*n = FlexInt(int(v))
	return nil
}

// RawField поле с негарантированной формой: строка, массив или число.
// Строки сохраняются как есть, всё остальное — как исходный JSON текст,
// чтобы разбор кандидатов изображений сам выбрал стратегию интерпретации
type RawField string

// UnmarshalJSON реализует json.Unmarshaler
func (f *RawField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = RawField(s)
		return nil
	}

	*f = RawField(data)
	return nil
}

// Record карточка товара в том виде, в каком её отдает поставщик.
// Никогда не сохраняется — всегда проходит через конвертацию в каталог
type Record struct {
	Pid          string    `json:"pid"`
	ProductSku   string    `json:"productSku"`
	NameEn       string    `json:"productNameEn"`
	Description  string    `json:"description"`
	CategoryName string    `json:"categoryName"`
	SellPrice    FlexPrice `json:"sellPrice"`

	// Поля изображений приходят строкой, списком через запятую,
	// JSON-массивом или JSON-массивом, закодированным в строку
	ProductImage    RawField `json:"productImage"`
	ProductImageSet RawField `json:"productImageSet"`
	BigImage        RawField `json:"bigImage"`

	Variants []Variant `json:"variants"`

	// Demo выставляется только генератором демо-каталога
	Demo bool `json:"-"`
}

// Variant вариант товара (цвет/размер) со своей ценой и остатком
type Variant struct {
	Vid          string    `json:"vid"`
	VariantSku   string    `json:"variantSku"`
	VariantKey   string    `json:"variantKey"`
	SellPrice    FlexPrice `json:"variantSellPrice"`
	Stock        FlexInt   `json:"variantStandardQuantity"`
	Image        RawField  `json:"variantImage"`
	WarehouseTag string    `json:"variantWarehouse"`
}

// listPage страница выдачи поиска по каталогу поставщика
type listPage struct {
	PageNum  int      `json:"pageNum"`
	PageSize int      `json:"pageSize"`
	Total    int      `json:"total"`
	List     []Record `json:"list"`
}

// authData данные ответа авторизации
type authData struct {
	AccessToken           string `json:"accessToken"`
	AccessTokenExpiryDate string `json:"accessTokenExpiryDate"`
}

// Методы поиска, которыми orchestrator нашел карточку
const (
	MethodPrimaryKey   = "primaryKey"
	MethodSecondaryKey = "secondaryKey"
	MethodNameSearch   = "nameSearch"
)
