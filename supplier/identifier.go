package supplier

import (
	"net/url"
	"regexp"
	"strings"
)

// IdentifierKind тип распознанного идентификатора
type IdentifierKind string

const (
	KindPrimaryKey   IdentifierKind = "primary_key"   // Канонический ключ товара у поставщика
	KindSecondaryKey IdentifierKind = "secondary_key" // Альтернативный код (SPU)
	KindSkuCode      IdentifierKind = "sku_code"      // Вендорный SKU с известным префиксом
	KindUrlDerived   IdentifierKind = "url_derived"   // Извлечен из URL страницы товара
	KindUnrecognized IdentifierKind = "unrecognized"  // Ни одна эвристика не сработала
)

// LookupStrategy рекомендованный порядок поисковых запросов
type LookupStrategy string

const (
	StrategyByPrimaryKey         LookupStrategy = "by_primary_key"
	StrategyBySecondaryKey       LookupStrategy = "by_secondary_key"
	StrategyTryBoth              LookupStrategy = "try_both"               // Сначала primary, затем secondary
	StrategySecondaryThenPrimary LookupStrategy = "secondary_then_primary" // Сначала secondary, затем primary
)

// Identifier результат классификации входной строки.
// Иммутабелен; выводится только из RawInput сопоставлением шаблонов.
// Kind == KindUnrecognized гарантирует, что поиск выполняться не будет
type Identifier struct {
	RawInput string         `json:"raw_input"`
	Kind     IdentifierKind `json:"kind"`
	Value    string         `json:"value"`
	Strategy LookupStrategy `json:"lookup_strategy"`
	Hint     string         `json:"hint,omitempty"` // Пояснение для Unrecognized
}

var (
	// Вендорные SKU вида CJCT25677400001: префикс CJ, буквенная серия, длинный номер
	vendorSkuRe = regexp.MustCompile(`^CJ[A-Z]{0,4}\d{6,}$`)

	// UUID-образные ключи старого API
	uuidKeyRe = regexp.MustCompile(`^[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}$`)

	digitsOnlyRe = regexp.MustCompile(`^\d+$`)

	// Буквенно-цифровой код товара: хотя бы одна цифра, допустимы - и _
	alnumSkuRe = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

	hasDigitRe = regexp.MustCompile(`\d`)
)

// Числовые первичные ключи текущего API — длинные цифровые строки
const (
	pkMinDigits = 15
	pkMaxDigits = 22
)

// ResolveIdentifier классифицирует произвольную строку (код, SKU, URL) в
// типизированный идентификатор с рекомендованной стратегией поиска.
// Тотальная функция: никогда не возвращает ошибку, нераспознанный вход
// дает Kind=KindUnrecognized с текстовой подсказкой.
//
// Порядок сопоставления (первое совпадение выигрывает): вендорный SKU-префикс,
// числовой первичный ключ известной длины, UUID-ключ, буквенно-цифровой SKU,
// URL с распознаваемым сегментом/параметром, эвристика длиннейшего сегмента
func ResolveIdentifier(raw string) Identifier {
	input := strings.TrimSpace(raw)
	if input == "" {
		return Identifier{
			RawInput: raw,
			Kind:     KindUnrecognized,
			Strategy: "",
			Hint:     "пустая строка: ожидается код товара, SKU или ссылка на карточку",
		}
	}

	// Вендорный SKU: начинается с известного префикса поставщика
	upper := strings.ToUpper(input)
	if vendorSkuRe.MatchString(upper) {
		return Identifier{
			RawInput: raw,
			Kind:     KindSkuCode,
			Value:    upper,
			Strategy: StrategySecondaryThenPrimary,
		}
	}

	// Чисто числовой вход
	if digitsOnlyRe.MatchString(input) {
		n := len(input)
		switch {
		case n >= pkMinDigits && n <= pkMaxDigits:
			return Identifier{
				RawInput: raw,
				Kind:     KindPrimaryKey,
				Value:    input,
				Strategy: StrategyByPrimaryKey,
			}
		case n >= 6:
			// Короткий номер: вероятнее артикул, но пробуем оба ключа
			return Identifier{
				RawInput: raw,
				Kind:     KindSecondaryKey,
				Value:    input,
				Strategy: StrategyTryBoth,
			}
		default:
			return Identifier{
				RawInput: raw,
				Kind:     KindUnrecognized,
				Hint:     "слишком короткий числовой код: ни первичный ключ, ни SKU",
			}
		}
	}

	// UUID-образный первичный ключ (формат старого API)
	if uuidKeyRe.MatchString(input) {
		return Identifier{
			RawInput: raw,
			Kind:     KindPrimaryKey,
			Value:    input,
			Strategy: StrategyByPrimaryKey,
		}
	}

	// Ссылка на карточку товара
	if looksLikeURL(input) {
		if id, ok := resolveFromURL(raw, input); ok {
			return id
		}
		return Identifier{
			RawInput: raw,
			Kind:     KindUnrecognized,
			Hint:     "в ссылке не найден сегмент или параметр с кодом товара",
		}
	}

	// Буквенно-цифровой SKU без известного префикса
	if alnumSkuRe.MatchString(input) && hasDigitRe.MatchString(input) {
		return Identifier{
			RawInput: raw,
			Kind:     KindSecondaryKey,
			Value:    input,
			Strategy: StrategyTryBoth,
		}
	}

	return Identifier{
		RawInput: raw,
		Kind:     KindUnrecognized,
		Hint:     "строка не похожа ни на код товара, ни на SKU, ни на ссылку",
	}
}

// looksLikeURL грубая проверка, что вход — ссылка, а не код
func looksLikeURL(s string) bool {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "//") {
		return true
	}
	return strings.Contains(s, "/") && strings.Contains(s, ".")
}

// Параметры запроса, в которых магазины передают код товара
var urlIDParams = []string{"pid", "productId", "product_id", "id", "sku", "productSku"}

// resolveFromURL извлекает код товара из URL: сначала параметры запроса,
// затем фрагмент, затем сегменты пути (последний осмысленный сегмент,
// в крайнем случае — самый длинный)
func resolveFromURL(raw, input string) (Identifier, bool) {
	normalized := input
	if strings.HasPrefix(normalized, "//") {
		normalized = "https:" + normalized
	}
	if !strings.HasPrefix(normalized, "http://") && !strings.HasPrefix(normalized, "https://") {
		normalized = "https://" + normalized
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return Identifier{}, false
	}

	// Параметры запроса
	q := u.Query()
	for _, param := range urlIDParams {
		if v := strings.TrimSpace(q.Get(param)); v != "" {
			return urlDerived(raw, v), true
		}
	}

	// Фрагмент вида #/product/12345 или #12345
	if frag := strings.TrimSpace(u.Fragment); frag != "" {
		fragSegs := splitSegments(frag)
		if v := pickIDSegment(fragSegs); v != "" {
			return urlDerived(raw, v), true
		}
	}

	// Сегменты пути: product-slug-p-1621554videonabludenie.html и подобные
	segs := splitSegments(u.Path)
	if v := pickIDSegment(segs); v != "" {
		return urlDerived(raw, v), true
	}

	// Последняя эвристика: самый длинный сегмент пути
	longest := ""
	for _, seg := range segs {
		if len(seg) > len(longest) {
			longest = seg
		}
	}
	if longest != "" {
		return urlDerived(raw, longest), true
	}

	return Identifier{}, false
}

// urlDerived собирает идентификатор URL-происхождения; стратегия зависит
// от формы извлеченного значения
func urlDerived(raw, value string) Identifier {
	value = strings.TrimSuffix(value, ".html")
	value = strings.TrimSuffix(value, ".htm")

	strategy := StrategyTryBoth
	upper := strings.ToUpper(value)
	switch {
	case vendorSkuRe.MatchString(upper):
		value = upper
		strategy = StrategySecondaryThenPrimary
	case digitsOnlyRe.MatchString(value) && len(value) >= pkMinDigits && len(value) <= pkMaxDigits:
		strategy = StrategyByPrimaryKey
	case uuidKeyRe.MatchString(value):
		strategy = StrategyByPrimaryKey
	}

	return Identifier{
		RawInput: raw,
		Kind:     KindUrlDerived,
		Value:    value,
		Strategy: strategy,
	}
}

// splitSegments режет путь на непустые сегменты
func splitSegments(path string) []string {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Сегменты, которые не являются кодом товара
var skipSegments = map[string]bool{
	"product": true, "products": true, "item": true, "items": true,
	"detail": true, "details": true, "p": true, "goods": true,
	"en": true, "ru": true, "catalog": true, "category": true,
}

// pickIDSegment выбирает сегмент, похожий на код: берем последний
// подходящий, пропуская служебные слова
func pickIDSegment(segs []string) string {
	for i := len(segs) - 1; i >= 0; i-- {
		seg := segs[i]
		base := strings.TrimSuffix(strings.TrimSuffix(seg, ".html"), ".htm")
		lower := strings.ToLower(base)
		if skipSegments[lower] {
			continue
		}

		// Явный код внутри slug: product-name-p-1621554
		if m := slugIDRe.FindStringSubmatch(base); m != nil {
			return m[1]
		}

		if hasDigitRe.MatchString(base) {
			return base
		}
	}
	return ""
}

// slug с числовым хвостом: "-p-1621554" или "-1621554" в конце
var slugIDRe = regexp.MustCompile(`-p?-?(\d{6,})$`)
