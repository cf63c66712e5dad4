package images

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"importserver/supplier"
)

// Candidate кандидат изображения: откуда взят, во что нормализован
// и чем закончилась сетевая проверка
type Candidate struct {
	RawValue    string `json:"raw_value"`
	SourceField string `json:"source_field"`
	URL         string `json:"url"`

	Valid      bool   `json:"valid"`
	StatusCode int    `json:"status_code,omitempty"`
	Method     string `json:"method,omitempty"` // HEAD или GET
	RedirectTo string `json:"redirect_to,omitempty"`
	Err        string `json:"error,omitempty"`
}

// Collect извлекает кандидатов из всех известных полей карточки и её
// вариантов, нормализует их и дедуплицирует с сохранением порядка.
// Первый выживший кандидат — кандидат в главное изображение
func Collect(rec *supplier.Record, baseHost string) []Candidate {
	if rec == nil {
		return nil
	}
	if baseHost == "" {
		baseHost = DefaultBaseHost
	}

	var raw []Candidate
	add := func(field, value string) {
		for _, u := range ParseImageField(value) {
			raw = append(raw, Candidate{RawValue: u, SourceField: field})
		}
	}

	add("productImage", string(rec.ProductImage))
	add("productImageSet", string(rec.ProductImageSet))
	add("bigImage", string(rec.BigImage))

	for _, v := range rec.Variants {
		add("variantImage", string(v.Image))
	}

	for _, u := range minedFromHTML(rec.Description) {
		raw = append(raw, Candidate{RawValue: u, SourceField: "description"})
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]Candidate, 0, len(raw))
	for _, c := range raw {
		normalized, ok := NormalizeURL(c.RawValue, baseHost)
		if !ok {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		c.URL = normalized
		out = append(out, c)
	}
	return out
}

// minedFromHTML вытаскивает адреса из тегов img в HTML описания товара.
// Описания поставщика часто содержат галерею, которой нет в полях карточки
func minedFromHTML(html string) []string {
	if html == "" || !strings.Contains(html, "<img") {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var urls []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range []string{"src", "data-src"} {
			if val, ok := sel.Attr(attr); ok {
				val = strings.TrimSpace(val)
				if plausibleURL(val) {
					urls = append(urls, val)
					return
				}
			}
		}
	})
	return urls
}
