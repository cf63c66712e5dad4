package supplier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"importserver/internal/retry"
)

// countingTokenProvider токен-провайдер с учетом сбросов для проверки
// однократного обновления после отказа авторизации
type countingTokenProvider struct {
	invalidations int32
	generation    int32
}

func (p *countingTokenProvider) Token(ctx context.Context) (string, error) {
	return fmt.Sprintf("token-gen-%d", atomic.LoadInt32(&p.generation)), nil
}

func (p *countingTokenProvider) Invalidate() {
	atomic.AddInt32(&p.invalidations, 1)
	atomic.AddInt32(&p.generation, 1)
}

// newTestClient собирает клиент с быстрыми повторами поверх мок-сервера
func newTestClient(baseURL string, tokens TokenProvider, maxAttempts int) *Client {
	return &Client{
		cfg:        Config{BaseURL: baseURL, Email: "shop@example.com", Password: "secret"},
		httpClient: &http.Client{Timeout: 5 * time.Second},
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(1000), 1000),
		breaker:    NewCircuitBreaker(),
		retryPolicy: retry.Policy{
			MaxAttempts: maxAttempts,
			Backoff:     time.Millisecond,
			BackoffStep: time.Millisecond,
		},
		logger: slog.Default().With("component", "supplier-client"),
	}
}

func TestClient_QueryByPrimaryKey(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		if r.URL.Path != "/product/query" {
			t.Errorf("path = %s, want /product/query", r.URL.Path)
		}
		if got := r.URL.Query().Get("pid"); got != "2408300610291613200" {
			t.Errorf("pid = %q", got)
		}
		if got := r.Header.Get("CJ-Access-Token"); got != "test-token" {
			t.Errorf("CJ-Access-Token = %q, want test-token", got)
		}

		fmt.Fprint(w, `{
			"code": 200,
			"result": true,
			"data": {
				"pid": "2408300610291613200",
				"productSku": "CJPT104275201",
				"productNameEn": "Pet Water Fountain",
				"categoryName": "Pet Supplies",
				"sellPrice": "15.80",
				"productImage": "https://img.example.com/p/main.jpg"
			}
		}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &StaticTokenProvider{Value: "test-token"}, 3)

	rec, err := c.QueryByPrimaryKey(context.Background(), "2408300610291613200")
	if err != nil {
		t.Fatalf("QueryByPrimaryKey error: %v", err)
	}
	if rec.Pid != "2408300610291613200" {
		t.Errorf("Pid = %q", rec.Pid)
	}
	if rec.NameEn != "Pet Water Fountain" {
		t.Errorf("NameEn = %q", rec.NameEn)
	}
	if float64(rec.SellPrice) != 15.80 {
		t.Errorf("SellPrice = %v, want 15.80", float64(rec.SellPrice))
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("http calls = %d, want 1", got)
	}
}

// Внутренний код != 200 при HTTP 200 — это "нет данных", не сбой транспорта:
// без повторов, с типизированной ошибкой NotFoundError
func TestClient_InnerCodeIsNotFoundWithoutRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"code": 400, "result": false, "message": "product not exist"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &StaticTokenProvider{Value: "t"}, 3)

	_, err := c.QueryBySecondaryKey(context.Background(), "CJPT104275201")
	if !IsNotFound(err) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}

	var nf *NotFoundError
	if errors.As(err, &nf) {
		if nf.Input != "CJPT104275201" {
			t.Errorf("NotFoundError.Input = %q, want the search key", nf.Input)
		}
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("http calls = %d, want 1: no-data must not be retried", got)
	}
}

// HTTP 200 с пустым data тоже означает "карточки нет"
func TestClient_NullDataIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code": 200, "result": true, "data": null}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &StaticTokenProvider{Value: "t"}, 3)

	_, err := c.QueryByPrimaryKey(context.Background(), "123456789012345678")
	if !IsNotFound(err) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
}

// Внутренний код авторизации ведет к однократному сбросу токена и повтору
func TestClient_AuthCodeRefreshesTokenOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			fmt.Fprint(w, `{"code": 1600001, "result": false, "message": "token expired"}`)
			return
		}
		if got := r.Header.Get("CJ-Access-Token"); got != "token-gen-1" {
			t.Errorf("retry used token %q, want the refreshed token-gen-1", got)
		}
		fmt.Fprint(w, `{"code": 200, "result": true, "data": {"pid": "123456789012345678", "productNameEn": "Dog Bed"}}`)
	}))
	defer srv.Close()

	tokens := &countingTokenProvider{}
	c := newTestClient(srv.URL, tokens, 3)

	rec, err := c.QueryByPrimaryKey(context.Background(), "123456789012345678")
	if err != nil {
		t.Fatalf("QueryByPrimaryKey error: %v", err)
	}
	if rec.NameEn != "Dog Bed" {
		t.Errorf("NameEn = %q", rec.NameEn)
	}
	if got := atomic.LoadInt32(&tokens.invalidations); got != 1 {
		t.Errorf("token invalidations = %d, want 1", got)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("http calls = %d, want 2", got)
	}
}

// Повторный отказ авторизации после обновления токена поднимается наверх,
// второго сброса не происходит
func TestClient_AuthFailureAfterRefreshSurfaces(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &countingTokenProvider{}
	c := newTestClient(srv.URL, tokens, 3)

	_, err := c.QueryByPrimaryKey(context.Background(), "123456789012345678")
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("error = %v, want ErrAuthExpired", err)
	}
	if got := atomic.LoadInt32(&tokens.invalidations); got != 1 {
		t.Errorf("token invalidations = %d, want exactly 1", got)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("http calls = %d, want 2: one refresh, no further retries", got)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"code": 200, "result": true, "data": {"pid": "123456789012345678"}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &StaticTokenProvider{Value: "t"}, 3)

	rec, err := c.QueryByPrimaryKey(context.Background(), "123456789012345678")
	if err != nil {
		t.Fatalf("QueryByPrimaryKey error: %v", err)
	}
	if rec.Pid != "123456789012345678" {
		t.Errorf("Pid = %q", rec.Pid)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("http calls = %d, want 3", got)
	}
}

func TestClient_ClientErrorStatusNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &StaticTokenProvider{Value: "t"}, 3)

	_, err := c.QueryByPrimaryKey(context.Background(), "123456789012345678")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want StatusError", err)
	}
	if statusErr.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", statusErr.Status)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("http calls = %d, want 1", got)
	}
}

// Circuit breaker открывается после серии отказов и режет запросы без сети
func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &StaticTokenProvider{Value: "t"}, 1)

	var sawCircuitOpen bool
	for i := 0; i < 8; i++ {
		_, err := c.QueryByPrimaryKey(context.Background(), "123456789012345678")
		if err == nil {
			t.Fatal("expected errors from failing upstream")
		}
		if errors.Is(err, ErrCircuitOpen) {
			sawCircuitOpen = true
		}
	}

	if !sawCircuitOpen {
		t.Error("breaker never opened after consecutive upstream failures")
	}
	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Errorf("http calls = %d, want 5: open breaker must not hit the network", got)
	}
}

func TestClient_ListVariantsNoDataGivesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/product/variant/query" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"code": 400, "result": false, "message": "no data"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &StaticTokenProvider{Value: "t"}, 3)

	variants, err := c.ListVariants(context.Background(), "123456789012345678")
	if err != nil {
		t.Fatalf("ListVariants error: %v", err)
	}
	if len(variants) != 0 {
		t.Errorf("variants = %d, want 0", len(variants))
	}
}

func TestClient_MalformedEnvelope(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `<html>gateway error</html>`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &StaticTokenProvider{Value: "t"}, 3)

	_, err := c.QueryByPrimaryKey(context.Background(), "123456789012345678")
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestClient_DemoModeWithoutCredentials(t *testing.T) {
	c := NewClient(Config{}, &StaticTokenProvider{})

	if !c.IsDemo() {
		t.Fatal("client without credentials must run in demo mode")
	}

	records, total, err := c.ListProducts(context.Background(), "", 1, 5)
	if err != nil {
		t.Fatalf("ListProducts error: %v", err)
	}
	if len(records) != 5 {
		t.Errorf("page size = %d, want 5", len(records))
	}
	if total < len(records) {
		t.Errorf("total = %d, want >= %d", total, len(records))
	}

	rec, err := c.QueryByPrimaryKey(context.Background(), records[0].Pid)
	if err != nil {
		t.Fatalf("QueryByPrimaryKey in demo mode error: %v", err)
	}
	if rec.Pid != records[0].Pid {
		t.Errorf("Pid = %q, want %q", rec.Pid, records[0].Pid)
	}
	if !rec.Demo {
		t.Error("demo records must be flagged")
	}
}
