package images

import (
	"net/url"
	"regexp"
	"strings"
)

// DefaultBaseHost CDN поставщика: против него раскрываются
// root-relative ссылки из описаний
const DefaultBaseHost = "https://cc-west-usa.oss-us-west-1.aliyuncs.com"

// Суффикс миниатюры вида _100x100 перед расширением
var thumbSuffixRe = regexp.MustCompile(`(?i)_(\d{2,4})x(\d{2,4})(\.(?:jpe?g|png|webp|gif))$`)

var imageExtRe = regexp.MustCompile(`\.(?:jpe?g|png|webp|gif|bmp)$`)

// NormalizeURL приводит сырой кандидат к абсолютному http(s) URL.
// Раскрывает protocol-relative (//host/...) и root-relative (/path) формы,
// отбрасывает query-мусор у прямых ссылок на файлы и суффиксы миниатюр.
// Возвращает false для всего, что после раскрытия не является http(s)
func NormalizeURL(raw, baseHost string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	if s == "" {
		return "", false
	}
	if baseHost == "" {
		baseHost = DefaultBaseHost
	}

	switch {
	case strings.HasPrefix(s, "//"):
		s = "https:" + s
	case strings.HasPrefix(s, "/"):
		s = strings.TrimRight(baseHost, "/") + s
	case !strings.Contains(s, "://"):
		// Хост без схемы: img.example.com/a.jpg
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" || !strings.Contains(u.Host, ".") {
		return "", false
	}

	lowerPath := strings.ToLower(u.Path)
	if imageExtRe.MatchString(lowerPath) {
		// У прямой ссылки на файл query — трекинговый мусор
		u.RawQuery = ""
	}
	u.Fragment = ""
	u.Path = thumbSuffixRe.ReplaceAllString(u.Path, "$3")

	return u.String(), true
}

// Dedup убирает точные дубликаты URL, сохраняя порядок первого вхождения
func Dedup(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
