package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// proxyUserAgent подставляется, когда конфигурация не задает свой User-Agent
const proxyUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ImageProxyHandler перекачивает изображения с хостов, которые отказывают
// прямым запросам. Запрос переотправляется с браузерными заголовками,
// тело ответа течет клиенту без буферизации
type ImageProxyHandler struct {
	baseHandler *BaseHandler
	client      *http.Client
	userAgent   string
}

// NewImageProxyHandler создает новый обработчик проксирования изображений
func NewImageProxyHandler(baseHandler *BaseHandler, userAgent string, timeout time.Duration) *ImageProxyHandler {
	if userAgent == "" {
		userAgent = proxyUserAgent
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ImageProxyHandler{
		baseHandler: baseHandler,
		client:      &http.Client{Timeout: timeout},
		userAgent:   userAgent,
	}
}

// HandleImageProxy обрабатывает GET /image-proxy?url=<адрес изображения>
func (h *ImageProxyHandler) HandleImageProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.baseHandler.HandleMethodNotAllowed(w, r, http.MethodGet)
		return
	}

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		WriteJSONError(w, "Параметр url обязателен", http.StatusBadRequest)
		return
	}

	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		WriteJSONError(w, "Параметр url должен быть абсолютным http(s) адресом", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		WriteJSONError(w, fmt.Sprintf("Не удалось построить запрос: %v", err), http.StatusBadRequest)
		return
	}

	// Маскируемся под браузер: Referer указывает на корень хоста картинки
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")
	req.Header.Set("Referer", target.Scheme+"://"+target.Host+"/")

	resp, err := h.client.Do(req)
	if err != nil {
		slog.Warn("[ImageProxy] Upstream request failed",
			"url", rawURL,
			"error", err,
		)
		WriteJSONError(w, "Источник изображения недоступен", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	// Статус и тип содержимого пробрасываются как есть: решение о
	// пригодности ответа принимает вызывающая сторона
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(resp.StatusCode)

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		slog.Warn("[ImageProxy] Streaming interrupted",
			"url", rawURL,
			"written", written,
			"error", err,
		)
		return
	}

	slog.Debug("[ImageProxy] Image relayed",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", written,
	)
}
