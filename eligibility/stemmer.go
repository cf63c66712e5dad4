package eligibility

import (
	"strings"
	"sync"

	"github.com/kljensen/snowball"
)

// stemmer стеммер Snowball для английского с кэшем основ.
// Каталог поставщика английский, поэтому язык зашит
type stemmer struct {
	mu    sync.RWMutex
	cache map[string]string
}

func newStemmer() *stemmer {
	return &stemmer{cache: make(map[string]string)}
}

// Stem возвращает основу слова: "puppies" -> "puppi", "dogs" -> "dog".
// При сбое стемминга слово возвращается как есть
func (s *stemmer) Stem(word string) string {
	normalized := strings.ToLower(strings.TrimSpace(word))
	if normalized == "" {
		return ""
	}

	s.mu.RLock()
	cached, found := s.cache[normalized]
	s.mu.RUnlock()
	if found {
		return cached
	}

	stemmed, err := snowball.Stem(normalized, "english", true)
	if err != nil {
		stemmed = normalized
	}

	s.mu.Lock()
	s.cache[normalized] = stemmed
	s.mu.Unlock()

	return stemmed
}

// StemSet строит множество основ из списка ключевых слов
func (s *stemmer) StemSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stem := s.Stem(w); stem != "" {
			set[stem] = struct{}{}
		}
	}
	return set
}

func (s *stemmer) cacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
