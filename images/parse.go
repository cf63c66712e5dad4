// Package images реализует пайплайн разрешения изображений товара:
// извлечение кандидатов из разнородных полей поставщика, нормализацию
// и дедупликацию URL, сетевую проверку доступности и скачивание
// в контент-адресуемый локальный кэш с proxy-fallback для заблокированных
// хостов.
package images

import (
	"encoding/json"
	"strings"
)

// ParseImageField извлекает URL-кандидаты из сырого значения поля
// изображения. Поставщик присылает это поле как попало: одиночный URL,
// список через запятую, JSON-массив или JSON-массив, закодированный
// в строку.
//
// Стратегии разбора пробуются по порядку, принимается первая, давшая
// хотя бы один правдоподобный URL. Чистая функция без побочных эффектов
func ParseImageField(raw string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	for _, parse := range []func(string) []string{asLiteralURL, asCommaList, asEncodedArray} {
		if urls := parse(s); len(urls) > 0 {
			return urls
		}
	}
	return nil
}

// asLiteralURL принимает значение целиком как один URL
func asLiteralURL(s string) []string {
	if plausibleURL(s) {
		return []string{s}
	}
	return nil
}

// asCommaList разбирает список URL через запятую
func asCommaList(s string) []string {
	if !strings.Contains(s, ",") {
		return nil
	}

	var urls []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if plausibleURL(part) {
			urls = append(urls, part)
		}
	}
	return urls
}

// asEncodedArray разбирает JSON-массив, в том числе закодированный в строку
func asEncodedArray(s string) []string {
	if !strings.HasPrefix(s, "[") {
		return nil
	}

	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		// Массив со смешанными типами: берем только строковые элементы
		var mixed []interface{}
		if err := json.Unmarshal([]byte(s), &mixed); err != nil {
			return nil
		}
		for _, item := range mixed {
			if str, ok := item.(string); ok {
				items = append(items, str)
			}
		}
	}

	var urls []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if plausibleURL(item) {
			urls = append(urls, item)
		}
	}
	return urls
}

// plausibleURL грубая проверка "похоже на URL": без кавычек, скобок
// и пробелов внутри, с признаками адреса. Отсекает мусор до того,
// как он дойдет до нормализации
func plausibleURL(s string) bool {
	if len(s) < 5 {
		return false
	}
	if strings.ContainsAny(s, "\"'[]{}<> \t\n") {
		return false
	}

	switch {
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return true
	case strings.HasPrefix(s, "//"), strings.HasPrefix(s, "/"):
		return true
	default:
		// Без схемы принимаем только хостоподобные значения
		return strings.Contains(s, ".")
	}
}
