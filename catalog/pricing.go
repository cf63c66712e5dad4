package catalog

import (
	"math"
	"sort"
	"strings"
)

// PriceBracket множитель наценки для себестоимости до MaxCost включительно
type PriceBracket struct {
	MaxCost    float64 `json:"max_cost"`
	Multiplier float64 `json:"multiplier"`
}

// PricingConfig параметры расчета розничной цены.
//
// Порядок применения фиксирован: корзина наценки → категорийная поправка →
// минимальная абсолютная наценка → потолок множителя → округление до .99 →
// глобальный минимум цены. Перестановка округления до минимальной наценки
// может дать цену ниже себестоимости
type PricingConfig struct {
	// ShippingBuffer добавка к закупочной цене за доставку и обработку
	ShippingBuffer float64 `json:"shipping_buffer"`

	// Brackets корзины наценки по возрастанию MaxCost;
	// дешевый товар получает больший множитель
	Brackets []PriceBracket `json:"brackets"`
	// FallbackMultiplier множитель для себестоимости выше последней корзины
	FallbackMultiplier float64 `json:"fallback_multiplier"`

	// CategoryAdjust поправка по категории, доли единицы
	CategoryAdjust map[string]float64 `json:"category_adjust"`
	// MaxCategoryAdjust предел категорийной поправки в обе стороны
	MaxCategoryAdjust float64 `json:"max_category_adjust"`

	// MinProfit минимальная абсолютная наценка над себестоимостью
	MinProfit float64 `json:"min_profit"`
	// MaxMultiplier потолок отношения цены к себестоимости
	MaxMultiplier float64 `json:"max_multiplier"`
	// MinSalePrice глобальный минимум розничной цены
	MinSalePrice float64 `json:"min_sale_price"`
}

// DefaultPricingConfig наценки магазина по умолчанию
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		ShippingBuffer:     2.0,
		Brackets:           []PriceBracket{{MaxCost: 5, Multiplier: 3.0}, {MaxCost: 15, Multiplier: 2.4}, {MaxCost: 50, Multiplier: 1.8}},
		FallbackMultiplier: 1.4,
		CategoryAdjust: map[string]float64{
			"toy":      0.10,
			"clothes":  0.08,
			"grooming": 0.05,
			"bowl":     0.03,
			"leash":    0.05,
			"food":     -0.05,
		},
		MaxCategoryAdjust: 0.12,
		MinProfit:         3.0,
		MaxMultiplier:     3.5,
		MinSalePrice:      4.99,
	}
}

// SalePrice считает розничную цену варианта из закупочной. Чистая функция:
// одинаковые аргументы всегда дают одинаковую цену.
// Для неположительной себестоимости возвращается минимальная цена
func (c PricingConfig) SalePrice(cost float64, category string) float64 {
	if cost <= 0 {
		return c.MinSalePrice
	}

	base := cost + c.ShippingBuffer
	price := c.bracketPrice(base)

	price *= 1 + c.categoryAdjustment(category)

	if floor := base + c.MinProfit; price < floor {
		price = floor
	}
	if ceiling := base * c.MaxMultiplier; c.MaxMultiplier > 0 && price > ceiling {
		price = ceiling
	}

	price = math.Floor(price) + 0.99

	if price < c.MinSalePrice {
		price = c.MinSalePrice
	}
	return price
}

// bracketPrice цена по корзине наценки. Цена на границе корзин не может
// упасть ниже потолка предыдущей корзины: без этого переход в корзину
// с меньшим множителем давал бы дешевле за дороже
func (c PricingConfig) bracketPrice(base float64) float64 {
	lowerCeiling := 0.0
	for _, b := range c.Brackets {
		if base <= b.MaxCost {
			return math.Max(base*b.Multiplier, lowerCeiling)
		}
		lowerCeiling = math.Max(lowerCeiling, b.MaxCost*b.Multiplier)
	}

	mult := c.FallbackMultiplier
	if mult <= 0 {
		mult = 1.4
	}
	return math.Max(base*mult, lowerCeiling)
}

// categoryAdjustment поправка для категории, ограниченная MaxCategoryAdjust
func (c PricingConfig) categoryAdjustment(category string) float64 {
	if len(c.CategoryAdjust) == 0 {
		return 0
	}

	key := strings.ToLower(strings.TrimSpace(category))
	adj, ok := c.CategoryAdjust[key]
	if !ok {
		// Категории поставщика длиннее наших ключей: "Pet Toys > Chew Toys".
		// Ключи обходятся в отсортированном порядке, иначе категория
		// с двумя совпадениями давала бы разную цену от запуска к запуску
		keys := make([]string, 0, len(c.CategoryAdjust))
		for k := range c.CategoryAdjust {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if strings.Contains(key, k) {
				adj = c.CategoryAdjust[k]
				ok = true
				break
			}
		}
	}
	if !ok {
		return 0
	}

	limit := c.MaxCategoryAdjust
	if limit <= 0 {
		limit = 0.12
	}
	return math.Max(-limit, math.Min(limit, adj))
}
