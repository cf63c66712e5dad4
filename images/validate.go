package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Validator проверяет доступность кандидатов сетевыми запросами.
// HEAD, а при 403/405 или таймауте — одна повторная попытка GET
// с маленьким Range: часть CDN режет HEAD, но отдает ranged GET
type Validator struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	ua      string
}

// NewValidator создает валидатор кандидатов
func NewValidator(cfg Config) *Validator {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 4
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Validator{
		client: &http.Client{
			Timeout: timeout,
			// Редиректы фиксируются как результат проверки,
			// разрешает их только путь скачивания
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(rate.Limit(perSec), int(perSec)+1),
		logger:  slog.Default().With("component", "image-validator"),
		ua:      ua,
	}
}

// Check выполняет сетевую проверку кандидата и заполняет поля результата.
// Кандидат валиден только после явной проверки: присутствие URL в данных
// поставщика само по себе ничего не гарантирует
func (v *Validator) Check(ctx context.Context, c *Candidate) {
	if err := v.limiter.Wait(ctx); err != nil {
		c.Err = err.Error()
		return
	}

	status, redirect, contentType, err := v.probe(ctx, http.MethodHead, c.URL)
	c.Method = http.MethodHead

	if needsGetFallback(status, err) {
		status, redirect, contentType, err = v.probe(ctx, http.MethodGet, c.URL)
		c.Method = http.MethodGet
	}

	if err != nil {
		c.Err = err.Error()
		return
	}

	c.StatusCode = status
	c.RedirectTo = redirect

	switch {
	case status == http.StatusOK || status == http.StatusPartialContent:
		if imageLikeContentType(contentType, c.URL) {
			c.Valid = true
		} else {
			c.Err = fmt.Sprintf("content type %q is not an image", contentType)
		}
	case status >= 300 && status < 400 && redirect != "":
		// Цель редиректа не проверяется здесь: её разрешит скачивание
		c.Valid = true
	default:
		c.Err = fmt.Sprintf("HTTP %d", status)
	}
}

// probe один запрос проверки; для GET добавляется маленький Range
func (v *Validator) probe(ctx context.Context, method, rawURL string) (status int, redirect, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, "", "", err
	}
	req.Header.Set("User-Agent", v.ua)
	req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-1023")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, "", "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))

	return resp.StatusCode, resp.Header.Get("Location"), resp.Header.Get("Content-Type"), nil
}

// needsGetFallback стоит ли повторить проверку ranged GET-ом
func needsGetFallback(status int, err error) bool {
	if err != nil {
		// Таймаут или обрыв HEAD: часть origin-ов просто не отвечает на HEAD
		return true
	}
	return status == http.StatusForbidden || status == http.StatusMethodNotAllowed
}

// imageLikeContentType картинка ли это по заголовку ответа.
// Пустой и octet-stream заголовки допускаются при явном расширении файла
func imageLikeContentType(ct, rawURL string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if strings.HasPrefix(ct, "image/") {
		return true
	}
	if ct == "" || strings.Contains(ct, "octet-stream") {
		return imageExtRe.MatchString(strings.ToLower(urlPath(rawURL)))
	}
	return false
}

// urlPath путь URL без разбора ошибок: для эвристики достаточно
func urlPath(rawURL string) string {
	s := rawURL
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		s = s[idx:]
	} else {
		s = "/"
	}
	if idx := strings.IndexByte(s, '?'); idx >= 0 {
		s = s[:idx]
	}
	return s
}
