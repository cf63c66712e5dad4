package supplier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"importserver/internal/retry"
)

// DefaultBaseURL адрес API поставщика (v2)
const DefaultBaseURL = "https://developers.cjdropshipping.com/api2.0/v1"

// Заголовок с bearer-токеном
const accessTokenHeader = "CJ-Access-Token"

// Client клиент API поставщика. Все запросы идут через rate limiter,
// circuit breaker и общий комбинатор повторов; токен берется у TokenProvider.
//
// Без учетных данных клиент работает в демо-режиме: методы отдают локально
// сгенерированный каталог, в сеть запросы не уходят
type Client struct {
	cfg         Config
	httpClient  *http.Client
	tokens      TokenProvider
	limiter     *rate.Limiter
	breaker     *CircuitBreaker
	retryPolicy retry.Policy
	logger      *slog.Logger
	demo        *DemoCatalog
}

// NewClient создает клиент API поставщика
func NewClient(cfg Config, tokens TokenProvider) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), 2),
		breaker:    NewCircuitBreaker(),
		retryPolicy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     1 * time.Second,
			BackoffStep: 1 * time.Second,
		},
		logger: slog.Default().With("component", "supplier-client"),
	}

	if cfg.DemoMode() {
		c.demo = NewDemoCatalog()
		c.logger.Warn("Supplier credentials are not configured, client runs in demo mode")
	}

	return c
}

// IsDemo сообщает, работает ли клиент в демо-режиме
func (c *Client) IsDemo() bool {
	return c.demo != nil
}

// BreakerDetails возвращает состояние circuit breaker для мониторинга
func (c *Client) BreakerDetails() map[string]interface{} {
	return c.breaker.StateDetails()
}

// QueryByPrimaryKey ищет карточку по первичному ключу поставщика
func (c *Client) QueryByPrimaryKey(ctx context.Context, pid string) (*Record, error) {
	if c.demo != nil {
		return c.demo.QueryByPrimaryKey(pid)
	}

	q := url.Values{}
	q.Set("pid", pid)

	var rec Record
	if err := c.getJSON(ctx, "product/query", q, &rec); err != nil {
		return nil, wrapNoData(err, pid, MethodPrimaryKey)
	}
	if rec.Pid == "" {
		return nil, &NotFoundError{Input: pid, Attempts: []string{MethodPrimaryKey}}
	}
	return &rec, nil
}

// QueryBySecondaryKey ищет карточку по альтернативному коду (SPU/SKU)
func (c *Client) QueryBySecondaryKey(ctx context.Context, sku string) (*Record, error) {
	if c.demo != nil {
		return c.demo.QueryBySecondaryKey(sku)
	}

	q := url.Values{}
	q.Set("productSku", sku)

	var rec Record
	if err := c.getJSON(ctx, "product/query", q, &rec); err != nil {
		return nil, wrapNoData(err, sku, MethodSecondaryKey)
	}
	if rec.Pid == "" {
		return nil, &NotFoundError{Input: sku, Attempts: []string{MethodSecondaryKey}}
	}
	return &rec, nil
}

// SearchByName ищет карточку по названию, возвращает первый результат
func (c *Client) SearchByName(ctx context.Context, name string) (*Record, error) {
	if c.demo != nil {
		return c.demo.SearchByName(name)
	}

	records, _, err := c.ListProducts(ctx, name, 1, 1)
	if err != nil {
		return nil, wrapNoData(err, name, MethodNameSearch)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Input: name, Attempts: []string{MethodNameSearch}}
	}
	return &records[0], nil
}

// ListProducts возвращает страницу каталога поставщика.
// query пустой — вся выдача без фильтра по названию
func (c *Client) ListProducts(ctx context.Context, query string, pageNum, pageSize int) ([]Record, int, error) {
	if c.demo != nil {
		return c.demo.ListProducts(query, pageNum, pageSize)
	}

	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}

	q := url.Values{}
	q.Set("pageNum", fmt.Sprintf("%d", pageNum))
	q.Set("pageSize", fmt.Sprintf("%d", pageSize))
	if query != "" {
		q.Set("productNameEn", query)
	}

	var page listPage
	if err := c.getJSON(ctx, "product/list", q, &page); err != nil {
		if IsNotFound(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	return page.List, page.Total, nil
}

// ListVariants возвращает варианты товара по его первичному ключу
func (c *Client) ListVariants(ctx context.Context, pid string) ([]Variant, error) {
	if c.demo != nil {
		return c.demo.ListVariants(pid)
	}

	q := url.Values{}
	q.Set("pid", pid)

	var variants []Variant
	if err := c.getJSON(ctx, "product/variant/query", q, &variants); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return variants, nil
}

// getJSON выполняет GET запрос с повторами и однократным обновлением токена.
// При отказе авторизации токен сбрасывается и запрос повторяется ровно один
// раз; повторный отказ поднимается наверх
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	op := func(ctx context.Context) error {
		return c.doOnce(ctx, path, query, out)
	}

	err := retry.Do(ctx, c.retryPolicy, IsTransient, op)
	if errors.Is(err, ErrAuthExpired) {
		c.logger.Warn("Supplier token rejected, refreshing once", "path", path)
		c.tokens.Invalidate()
		err = retry.Do(ctx, c.retryPolicy, IsTransient, op)
	}
	return err
}

// doOnce одна попытка запроса: rate limit, breaker, токен, транспорт, конверт
func (c *Client) doOnce(ctx context.Context, path string, query url.Values, out interface{}) error {
	if !c.breaker.CanProceed() {
		return ErrCircuitOpen
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("obtaining supplier token: %w", err)
	}

	reqURL := joinURL(c.cfg.BaseURL, path)
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building supplier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessTokenHeader, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("supplier request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// Upstream жив, проблема в нашем токене
		c.breaker.RecordSuccess()
		io.Copy(io.Discard, resp.Body)
		return ErrAuthExpired

	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		c.breaker.RecordFailure()
		return &StatusError{Status: resp.StatusCode, Body: readBodyPrefix(resp)}

	case resp.StatusCode != http.StatusOK:
		c.breaker.RecordSuccess()
		return &StatusError{Status: resp.StatusCode, Body: readBodyPrefix(resp)}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("decoding supplier envelope for %s: %w", path, err)
	}

	// HTTP 200 с внутренним кодом != 200 — это "нет данных", upstream здоров
	c.breaker.RecordSuccess()

	if env.Code != 200 {
		if isAuthCode(env.Code) {
			return ErrAuthExpired
		}
		return &NotFoundError{Input: path, Attempts: nil}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding supplier data for %s: %w", path, err)
	}
	return nil
}

// isAuthCode определяет внутренние коды отказа авторизации
func isAuthCode(code int) bool {
	return code == 401 || (code >= 1600000 && code < 1610000)
}

// wrapNoData приводит внутренний отказ "нет данных" к NotFoundError
// с реальным ключом поиска и методом
func wrapNoData(err error, input, method string) error {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return &NotFoundError{Input: input, Attempts: []string{method}}
	}
	return err
}
