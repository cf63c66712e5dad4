// Package eligibility решает, допускается ли сконвертированный товар
// в каталог зоомагазина. Гейт — чистая функция над текстом карточки:
// фильтр по ключевым словам со стеммингом, без сети и без состояния
package eligibility

import (
	"fmt"
	"strings"
	"unicode"

	"importserver/catalog"
)

// Типы животных, которые определяет гейт
const (
	PetTypeDog       = "dog"
	PetTypeCat       = "cat"
	PetTypeUniversal = "universal"
)

// Verdict вердикт гейта по одному товару
type Verdict struct {
	OK      bool   `json:"ok"`
	Reason  string `json:"reason,omitempty"`
	PetType string `json:"pet_type,omitempty"`
}

// Gate внешняя граница допуска: принимает или отклоняет
// сконвертированный товар до записи в каталог
type Gate interface {
	Check(p *catalog.Product) Verdict
}

// Ключевые слова по умолчанию. Сравнение идет по основам,
// поэтому "puppies" находит "puppy"
var (
	defaultAllowWords = []string{
		"pet", "dog", "puppy", "cat", "kitten", "bird", "parrot",
		"fish", "aquarium", "hamster", "rabbit", "reptile", "terrarium",
		"leash", "collar", "harness", "kennel", "aviary", "litter",
		"scratcher", "scratching", "muzzle", "paw",
	}
	defaultBlockWords = []string{
		"knife", "weapon", "gun", "ammo", "cigarette", "tobacco",
		"vape", "lighter", "firework",
	}
	defaultDogWords = []string{"dog", "puppy", "doggy", "canine", "kennel", "muzzle"}
	defaultCatWords = []string{"cat", "kitten", "kitty", "feline", "litter", "scratcher", "scratching"}
)

// KeywordGate гейт по ключевым словам — реализация Gate по умолчанию
type KeywordGate struct {
	stemmer *stemmer

	allow map[string]struct{}
	block map[string]struct{}
	dog   map[string]struct{}
	cat   map[string]struct{}
}

// NewKeywordGate создает гейт со встроенными списками ключевых слов
func NewKeywordGate() *KeywordGate {
	return NewKeywordGateWithLists(defaultAllowWords, defaultBlockWords)
}

// NewKeywordGateWithLists создает гейт с собственными списками разрешающих
// и запрещающих слов; определение типа животного остается встроенным
func NewKeywordGateWithLists(allow, block []string) *KeywordGate {
	st := newStemmer()
	return &KeywordGate{
		stemmer: st,
		allow:   st.StemSet(allow),
		block:   st.StemSet(block),
		dog:     st.StemSet(defaultDogWords),
		cat:     st.StemSet(defaultCatWords),
	}
}

// Check проверяет товар по названию, категории и описанию.
// Запрещающее слово отклоняет товар независимо от остальных совпадений
func (g *KeywordGate) Check(p *catalog.Product) Verdict {
	if p == nil {
		return Verdict{Reason: "product is nil"}
	}

	text := strings.Join([]string{p.Title, p.Category, p.Description}, " ")
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return Verdict{Reason: "product has no text to classify"}
	}

	var allowHits, dogHits, catHits int
	for _, token := range tokens {
		stem := g.stemmer.Stem(token)
		if _, blocked := g.block[stem]; blocked {
			return Verdict{Reason: fmt.Sprintf("blocked term %q", token)}
		}
		if _, ok := g.allow[stem]; ok {
			allowHits++
		}
		if _, ok := g.dog[stem]; ok {
			dogHits++
		}
		if _, ok := g.cat[stem]; ok {
			catHits++
		}
	}

	if allowHits == 0 {
		return Verdict{Reason: "no pet-related terms in product text"}
	}

	return Verdict{OK: true, PetType: petType(dogHits, catHits)}
}

// petType выбирает тип животного по числу совпадений;
// при равенстве товар считается универсальным
func petType(dogHits, catHits int) string {
	switch {
	case dogHits > catHits:
		return PetTypeDog
	case catHits > dogHits:
		return PetTypeCat
	default:
		return PetTypeUniversal
	}
}

// tokenize режет текст на слова: всё, кроме букв и цифр, — разделитель
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
	return strings.Fields(cleaned)
}
