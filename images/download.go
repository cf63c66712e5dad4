package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Лимит ручного следования редиректам при скачивании
const maxRedirects = 5

// Файл меньше этого размера считается мусорным и перекачивается
const minCachedFileSize = 1024

// errAccessDenied хост отдал 401/403: кандидат уходит на proxy-fallback
var errAccessDenied = errors.New("image host denied access")

// httpStatusError неуспешный статус при скачивании
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("image download returned HTTP %d", e.status)
}

// Downloader скачивает проверенные URL в контент-адресуемый кэш.
// Путь файла детерминированно выводится из URL и идентификатора товара,
// поэтому повторное скачивание того же URL — no-op без сетевого трафика
type Downloader struct {
	cacheDir  string
	client    *http.Client
	limiter   *rate.Limiter
	proxyBase string
	logger    *slog.Logger
	ua        string
}

// NewDownloader создает загрузчик с кэшем в cfg.CacheDir
func NewDownloader(cfg Config) *Downloader {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 4
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join("data", "media")
	}

	return &Downloader{
		cacheDir: cacheDir,
		client: &http.Client{
			Timeout: timeout,
			// Редиректы обрабатываются вручную: каждый hop логируется
			// и общее число ограничено
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter:   rate.NewLimiter(rate.Limit(perSec), int(perSec)+1),
		proxyBase: cfg.ProxyBaseURL,
		logger:    slog.Default().With("component", "image-downloader"),
		ua:        ua,
	}
}

// LocalPath возвращает контент-адресуемый путь для URL:
// <cacheDir>/<sanitized-id>_<sha256(url) первые 16 hex><ext>
func (d *Downloader) LocalPath(productID, rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	name := fmt.Sprintf("%s_%s%s", sanitizeID(productID), hex.EncodeToString(sum[:8]), extFor(rawURL))
	return filepath.Join(d.cacheDir, name)
}

// Download скачивает URL в кэш и возвращает локальный путь.
// Уже скачанный файл нетривиального размера не перекачивается.
// При 401/403 выполняется ровно одна попытка через локальный proxy,
// при 404 пробуются альтернативные расширения файла
func (d *Downloader) Download(ctx context.Context, productID, rawURL string) (string, error) {
	path := d.LocalPath(productID, rawURL)
	if info, err := os.Stat(path); err == nil && info.Size() >= minCachedFileSize {
		return path, nil
	}

	if err := os.MkdirAll(d.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating media cache dir: %w", err)
	}

	err := d.fetchToFile(ctx, rawURL, path)

	if errors.Is(err, errAccessDenied) && d.proxyBase != "" {
		proxyURL := strings.TrimRight(d.proxyBase, "/") + "/image-proxy?url=" + url.QueryEscape(rawURL)
		d.logger.Info("Image host denied access, retrying through local proxy", "url", rawURL)
		err = d.fetchToFile(ctx, proxyURL, path)
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.status == http.StatusNotFound {
		for _, alt := range alternateExtensions(rawURL) {
			d.logger.Debug("Trying alternate image extension", "url", alt)
			if altErr := d.fetchToFile(ctx, alt, path); altErr == nil {
				return path, nil
			}
		}
	}

	if err != nil {
		return "", err
	}
	return path, nil
}

// fetchToFile скачивает URL в файл, вручную следуя редиректам
func (d *Downloader) fetchToFile(ctx context.Context, rawURL, path string) error {
	current := rawURL

	for hop := 0; hop <= maxRedirects; hop++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return fmt.Errorf("building download request: %w", err)
		}
		req.Header.Set("User-Agent", d.ua)
		req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")
		if ref := refererFor(current); ref != "" {
			req.Header.Set("Referer", ref)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return fmt.Errorf("downloading %s: %w", current, err)
		}

		switch {
		case resp.StatusCode >= 300 && resp.StatusCode < 400:
			loc := resp.Header.Get("Location")
			io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
			resp.Body.Close()
			if loc == "" {
				return fmt.Errorf("redirect without Location from %s", current)
			}
			next, err := resolveRedirect(current, loc)
			if err != nil {
				return err
			}
			d.logger.Debug("Following image redirect", "hop", hop+1, "to", next)
			current = next
			continue

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
			resp.Body.Close()
			return errAccessDenied

		case resp.StatusCode == http.StatusOK:
			if ct := resp.Header.Get("Content-Type"); strings.Contains(strings.ToLower(ct), "text/html") {
				io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
				resp.Body.Close()
				return fmt.Errorf("host returned an html page instead of an image for %s", current)
			}
			saveErr := d.saveAtomic(path, resp.Body)
			resp.Body.Close()
			return saveErr

		default:
			io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
			status := resp.StatusCode
			resp.Body.Close()
			return &httpStatusError{status: status}
		}
	}

	return fmt.Errorf("too many redirects for %s", rawURL)
}

// saveAtomic пишет тело во временный файл и атомарно переименовывает:
// в кэше не бывает полузаписанных файлов
func (d *Downloader) saveAtomic(path string, body io.Reader) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	n, err := io.Copy(f, body)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if n == 0 {
		os.Remove(tmp)
		return fmt.Errorf("empty response body for %s", path)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

// resolveRedirect разрешает Location относительно текущего URL
func resolveRedirect(current, location string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("parsing redirect base %s: %w", current, err)
	}
	next, err := base.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parsing redirect target %s: %w", location, err)
	}
	if next.Scheme != "http" && next.Scheme != "https" {
		return "", fmt.Errorf("redirect to unsupported scheme %q", next.Scheme)
	}
	return next.String(), nil
}

// refererFor корень origin-а для заголовка Referer
func refererFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

// sanitizeID чистит идентификатор товара для использования в имени файла
func sanitizeID(id string) string {
	if id == "" {
		return "img"
	}

	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	s := b.String()
	if len(s) > 40 {
		s = s[:40]
	}
	if s == "" {
		return "img"
	}
	return s
}

// extFor расширение файла из URL; незнакомое приводится к .jpg
func extFor(rawURL string) string {
	ext := strings.ToLower(filepath.Ext(urlPath(rawURL)))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	default:
		return ".jpg"
	}
}

// alternateExtensions варианты URL с другим расширением для retry на 404.
// CDN поставщика иногда хранит файл не под тем расширением, что в карточке
func alternateExtensions(rawURL string) []string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasSuffix(lower, ".jpg"):
		return []string{rawURL[:len(rawURL)-4] + ".png"}
	case strings.HasSuffix(lower, ".jpeg"):
		return []string{rawURL[:len(rawURL)-5] + ".png"}
	case strings.HasSuffix(lower, ".png"):
		return []string{rawURL[:len(rawURL)-4] + ".jpg"}
	default:
		return nil
	}
}
