package supplier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newAuthServer поднимает мок авторизации, считающий запросы
func newAuthServer(t *testing.T, calls *int32, token string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/authentication/getAccessToken" {
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		atomic.AddInt32(calls, 1)

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding auth body: %v", err)
		}
		if body["email"] == "" || body["password"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		resp := map[string]interface{}{
			"code":    200,
			"result":  true,
			"message": "",
			"data": map[string]string{
				"accessToken":           token,
				"accessTokenExpiryDate": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestCachingTokenProvider_FetchesAndCaches(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, &calls, "token-one")
	defer srv.Close()

	provider := NewCachingTokenProvider(Config{
		BaseURL:  srv.URL,
		Email:    "shop@example.com",
		Password: "secret",
	})

	for i := 0; i < 5; i++ {
		token, err := provider.Token(context.Background())
		if err != nil {
			t.Fatalf("Token() error: %v", err)
		}
		if token != "token-one" {
			t.Fatalf("token = %q, want token-one", token)
		}
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("auth calls = %d, want 1: valid token must be served from cache", got)
	}
}

func TestCachingTokenProvider_InvalidateForcesRefresh(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, &calls, "token-two")
	defer srv.Close()

	provider := NewCachingTokenProvider(Config{
		BaseURL:  srv.URL,
		Email:    "shop@example.com",
		Password: "secret",
	})

	if _, err := provider.Token(context.Background()); err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	provider.Invalidate()
	if _, err := provider.Token(context.Background()); err != nil {
		t.Fatalf("Token() after Invalidate error: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("auth calls = %d, want 2", got)
	}
}

// TestCachingTokenProvider_SingleRefreshUnderRace проверяет double-check:
// воркеры, одновременно увидевшие пустой кэш, дают ровно один сетевой запрос
func TestCachingTokenProvider_SingleRefreshUnderRace(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, &calls, "token-race")
	defer srv.Close()

	provider := NewCachingTokenProvider(Config{
		BaseURL:  srv.URL,
		Email:    "shop@example.com",
		Password: "secret",
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := provider.Token(context.Background()); err != nil {
				t.Errorf("Token() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("auth calls = %d, want 1: concurrent workers must share one refresh", got)
	}
}

func TestCachingTokenProvider_FileCacheSurvivesRestart(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, &calls, "token-file")
	defer srv.Close()

	cachePath := filepath.Join(t.TempDir(), "supplier", "access_token.json")
	cfg := Config{
		BaseURL:        srv.URL,
		Email:          "shop@example.com",
		Password:       "secret",
		TokenCachePath: cachePath,
	}

	first := NewCachingTokenProvider(cfg)
	if _, err := first.Token(context.Background()); err != nil {
		t.Fatalf("Token() error: %v", err)
	}

	if _, err := os.Stat(cachePath); err != nil {
		t.Fatalf("token cache file was not written: %v", err)
	}

	// Новый провайдер имитирует перезапуск процесса
	second := NewCachingTokenProvider(cfg)
	token, err := second.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() after restart error: %v", err)
	}
	if token != "token-file" {
		t.Errorf("token = %q, want token-file", token)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("auth calls = %d, want 1: restart must reuse the persisted token", got)
	}
}

func TestCachingTokenProvider_CorruptedCacheIgnored(t *testing.T) {
	var calls int32
	srv := newAuthServer(t, &calls, "token-fresh")
	defer srv.Close()

	cachePath := filepath.Join(t.TempDir(), "access_token.json")
	if err := os.WriteFile(cachePath, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	provider := NewCachingTokenProvider(Config{
		BaseURL:        srv.URL,
		Email:          "shop@example.com",
		Password:       "secret",
		TokenCachePath: cachePath,
	})

	token, err := provider.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if token != "token-fresh" {
		t.Errorf("token = %q, want token-fresh", token)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("auth calls = %d, want 1", got)
	}
}

func TestCachingTokenProvider_NoCredentials(t *testing.T) {
	provider := NewCachingTokenProvider(Config{BaseURL: "http://127.0.0.1:0"})

	if _, err := provider.Token(context.Background()); err == nil {
		t.Error("Token() without credentials should fail")
	}
}
