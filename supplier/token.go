package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TokenProvider выдает действующий bearer-токен для запросов к поставщику.
// Провайдер передается клиенту и пайплайнам явно, без глобального состояния
type TokenProvider interface {
	// Token возвращает действующий токен, при необходимости обновляя его
	Token(ctx context.Context) (string, error)
	// Invalidate сбрасывает кэшированный токен после отказа авторизации
	Invalidate()
}

// Запас до истечения токена, при котором он считается устаревшим
const tokenExpiryMargin = 5 * time.Minute

// Срок жизни токена по умолчанию, если поставщик не прислал дату истечения
const tokenDefaultTTL = 14 * 24 * time.Hour

// cachedToken формат файла кэша токена
type cachedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CachingTokenProvider получает токен у поставщика и кэширует его в памяти
// и в файле, переживая перезапуски процесса.
//
// Дисциплина единственного писателя: воркеры читают токен под RLock,
// пишет только путь обновления под полным локом с повторной проверкой
// срока действия — гонка нескольких воркеров на истекшем токене приводит
// ровно к одному сетевому запросу авторизации
type CachingTokenProvider struct {
	cfg        Config
	httpClient *http.Client
	cachePath  string
	logger     *slog.Logger

	mu      sync.RWMutex
	current cachedToken
	loaded  bool // Файл кэша уже прочитан
}

// NewCachingTokenProvider создает провайдер токенов с файловым кэшем.
// cachePath пустой — кэш только в памяти
func NewCachingTokenProvider(cfg Config) *CachingTokenProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CachingTokenProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		cachePath:  cfg.TokenCachePath,
		logger:     slog.Default().With("component", "supplier-token"),
	}
}

// Token возвращает действующий токен, обновляя его при истечении срока
func (p *CachingTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.RLock()
	if !p.loaded {
		p.mu.RUnlock()
		p.loadFromFile()
		p.mu.RLock()
	}
	if p.valid() {
		token := p.current.AccessToken
		p.mu.RUnlock()
		return token, nil
	}
	p.mu.RUnlock()

	return p.refresh(ctx)
}

// Invalidate сбрасывает токен; следующий Token выполнит авторизацию заново
func (p *CachingTokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = cachedToken{}
	p.loaded = true
	if p.cachePath != "" {
		// Файл с отозванным токеном больше не нужен
		_ = os.Remove(p.cachePath)
	}
}

// valid проверяет срок действия под уже взятым локом
func (p *CachingTokenProvider) valid() bool {
	return p.current.AccessToken != "" && time.Until(p.current.ExpiresAt) > tokenExpiryMargin
}

// refresh выполняет авторизацию под полным локом с повторной проверкой:
// воркер, проигравший гонку за лок, увидит свежий токен и не пойдет в сеть
func (p *CachingTokenProvider) refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Повторная проверка: пока ждали лок, другой воркер мог обновить токен
	if p.valid() {
		return p.current.AccessToken, nil
	}

	token, err := p.authenticate(ctx)
	if err != nil {
		return "", err
	}

	p.current = token
	p.loaded = true
	p.saveToFile(token)

	p.logger.Info("Supplier access token refreshed", "expires_at", token.ExpiresAt.Format(time.RFC3339))
	return token.AccessToken, nil
}

// authenticate запрашивает новый токен у поставщика
func (p *CachingTokenProvider) authenticate(ctx context.Context) (cachedToken, error) {
	if p.cfg.Email == "" || p.cfg.Password == "" {
		return cachedToken{}, fmt.Errorf("supplier credentials are not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"email":    p.cfg.Email,
		"password": p.cfg.Password,
	})
	if err != nil {
		return cachedToken{}, fmt.Errorf("marshaling auth request: %w", err)
	}

	authURL := joinURL(p.cfg.BaseURL, "authentication/getAccessToken")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, bytes.NewReader(payload))
	if err != nil {
		return cachedToken{}, fmt.Errorf("building auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return cachedToken{}, fmt.Errorf("supplier auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cachedToken{}, &StatusError{Status: resp.StatusCode, Body: readBodyPrefix(resp)}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return cachedToken{}, fmt.Errorf("decoding auth response: %w", err)
	}
	if env.Code != 200 {
		return cachedToken{}, fmt.Errorf("supplier auth rejected: code=%d message=%s", env.Code, env.Message)
	}

	var data authData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return cachedToken{}, fmt.Errorf("decoding auth data: %w", err)
	}
	if data.AccessToken == "" {
		return cachedToken{}, fmt.Errorf("supplier auth response contains no access token")
	}

	expiresAt := parseExpiry(data.AccessTokenExpiryDate)

	return cachedToken{AccessToken: data.AccessToken, ExpiresAt: expiresAt}, nil
}

// parseExpiry разбирает дату истечения из ответа авторизации.
// Поставщик присылает её в нескольких форматах; при неудаче берем TTL по умолчанию
func parseExpiry(raw string) time.Time {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05-07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Now().Add(tokenDefaultTTL)
}

// loadFromFile читает кэш токена с диска (однократно, лениво)
func (p *CachingTokenProvider) loadFromFile() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return
	}
	p.loaded = true

	if p.cachePath == "" {
		return
	}

	data, err := os.ReadFile(p.cachePath)
	if err != nil {
		return
	}

	var token cachedToken
	if err := json.Unmarshal(data, &token); err != nil {
		p.logger.Warn("Supplier token cache file is corrupted, ignoring", "path", p.cachePath, "error", err)
		return
	}

	p.current = token
}

// saveToFile сохраняет токен на диск; вызывается под полным локом
func (p *CachingTokenProvider) saveToFile(token cachedToken) {
	if p.cachePath == "" {
		return
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return
	}

	if dir := filepath.Dir(p.cachePath); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	if err := os.WriteFile(p.cachePath, data, 0o600); err != nil {
		p.logger.Warn("Failed to persist supplier token cache", "path", p.cachePath, "error", err)
	}
}

// StaticTokenProvider фиксированный токен для тестов и демо-режима
type StaticTokenProvider struct {
	Value string
}

// Token возвращает фиксированный токен
func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	return p.Value, nil
}

// Invalidate ничего не делает
func (p *StaticTokenProvider) Invalidate() {}

// joinURL склеивает базовый URL и путь без двойных слэшей
func joinURL(base, path string) string {
	base = trimRightSlash(base)
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return base + "/" + path
}

func trimRightSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// readBodyPrefix читает начало тела ответа для сообщения об ошибке
func readBodyPrefix(resp *http.Response) string {
	buf := make([]byte, 512)
	n, _ := resp.Body.Read(buf)
	return string(buf[:n])
}
