package images

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"importserver/supplier"
)

func testPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	if cfg.CacheDir == "" {
		cfg.CacheDir = t.TempDir()
	}
	cfg.RatePerSec = 500
	return NewPipeline(cfg)
}

func TestPipeline_ResolveFullFlow(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/a.jpg", func(w http.ResponseWriter, r *http.Request) { serveImage(w) })
	mux.HandleFunc("/b.jpg", func(w http.ResponseWriter, r *http.Request) { serveImage(w) })
	mux.HandleFunc("/gone.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := &supplier.Record{
		Pid:          "2408300610291613200",
		ProductImage: supplier.RawField(srv.URL + "/a.jpg"),
		ProductImageSet: supplier.RawField(
			fmt.Sprintf(`["%s/b.jpg","%s/gone.jpg"]`, srv.URL, srv.URL)),
	}

	p := testPipeline(t, Config{})
	result := p.Resolve(context.Background(), rec.Pid, rec)

	if len(result.Candidates) != 3 {
		t.Fatalf("candidates = %d, want 3", len(result.Candidates))
	}
	if result.ValidCount != 2 || result.InvalidCount != 1 {
		t.Errorf("valid/invalid = %d/%d, want 2/1", result.ValidCount, result.InvalidCount)
	}

	if result.MainURL != srv.URL+"/a.jpg" {
		t.Errorf("MainURL = %q", result.MainURL)
	}
	if result.MainLocalPath == "" {
		t.Fatal("main image was not downloaded")
	}
	if _, err := os.Stat(result.MainLocalPath); err != nil {
		t.Errorf("main image file missing: %v", err)
	}

	if len(result.GalleryLocal) != 1 {
		t.Fatalf("gallery = %d, want 1", len(result.GalleryLocal))
	}
	if _, err := os.Stat(result.GalleryLocal[0]); err != nil {
		t.Errorf("gallery file missing: %v", err)
	}

	if got := result.ImageStatus(); got != "partial" {
		t.Errorf("ImageStatus = %q, want partial (one candidate failed)", got)
	}
	if !result.HasImages() {
		t.Error("HasImages must be true")
	}

	if stats := result.BySource["productImageSet"]; stats.Valid != 1 || stats.Invalid != 1 {
		t.Errorf("productImageSet stats = %+v", stats)
	}
}

func TestPipeline_AllCandidatesValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveImage(w)
	}))
	defer srv.Close()

	rec := &supplier.Record{
		ProductImage: supplier.RawField(srv.URL + "/a.jpg"),
		BigImage:     supplier.RawField(srv.URL + "/b.jpg"),
	}

	p := testPipeline(t, Config{})
	result := p.Resolve(context.Background(), "p1", rec)

	if got := result.ImageStatus(); got != "ok" {
		t.Errorf("ImageStatus = %q, want ok", got)
	}
	if result.Downloaded != 2 {
		t.Errorf("downloaded = %d, want 2", result.Downloaded)
	}
}

// Товар без единой картинки — это статус missing, а не ошибка
func TestPipeline_NoCandidates(t *testing.T) {
	rec := &supplier.Record{
		Pid:          "123456789012345678",
		ProductImage: supplier.RawField("no image"),
	}

	p := testPipeline(t, Config{})
	result := p.Resolve(context.Background(), rec.Pid, rec)

	if got := result.ImageStatus(); got != "missing" {
		t.Errorf("ImageStatus = %q, want missing", got)
	}
	if result.HasImages() {
		t.Error("HasImages must be false")
	}
	if result.MainURL != "" || result.MainLocalPath != "" {
		t.Error("main image fields must stay empty")
	}
}

func TestPipeline_AllInvalidIsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	rec := &supplier.Record{
		ProductImage: supplier.RawField(srv.URL + "/a.jpg"),
	}

	p := testPipeline(t, Config{})
	result := p.Resolve(context.Background(), "p1", rec)

	if got := result.ImageStatus(); got != "missing" {
		t.Errorf("ImageStatus = %q, want missing", got)
	}
}

// Кандидат прошел проверку, но скачивание не удалось
func TestPipeline_DownloadFailedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "image/jpeg")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := &supplier.Record{
		ProductImage: supplier.RawField(srv.URL + "/a.jpg"),
	}

	p := testPipeline(t, Config{})
	result := p.Resolve(context.Background(), "p1", rec)

	if result.ValidCount != 1 {
		t.Fatalf("valid = %d, want 1", result.ValidCount)
	}
	if result.DownloadFailed != 1 {
		t.Errorf("download failed = %d, want 1", result.DownloadFailed)
	}
	if got := result.ImageStatus(); got != "download_failed" {
		t.Errorf("ImageStatus = %q, want download_failed", got)
	}
}

// Квота: главное изображение плюс галерея до настроенного максимума,
// лишние кандидаты даже не проверяются
func TestPipeline_GalleryCapStopsValidation(t *testing.T) {
	var checks int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			atomic.AddInt32(&checks, 1)
		}
		serveImage(w)
	}))
	defer srv.Close()

	rec := &supplier.Record{
		ProductImage: supplier.RawField(fmt.Sprintf(
			`["%s/1.jpg","%s/2.jpg","%s/3.jpg","%s/4.jpg"]`,
			srv.URL, srv.URL, srv.URL, srv.URL)),
	}

	p := testPipeline(t, Config{MaxGallery: 1})
	result := p.Resolve(context.Background(), "p1", rec)

	if result.Checked != 2 {
		t.Errorf("checked = %d, want 2: quota is main plus one gallery", result.Checked)
	}
	if atomic.LoadInt32(&checks) != 2 {
		t.Errorf("HEAD requests = %d, want 2", atomic.LoadInt32(&checks))
	}
	if len(result.GalleryLocal) != 1 {
		t.Errorf("gallery = %d, want 1", len(result.GalleryLocal))
	}
}

func TestPipeline_SkipValidation(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		serveImage(w)
	}))
	defer srv.Close()

	rec := &supplier.Record{
		ProductImage: supplier.RawField(srv.URL + "/a.jpg"),
		BigImage:     supplier.RawField(srv.URL + "/b.jpg"),
	}

	p := testPipeline(t, Config{SkipValidation: true})
	result := p.Resolve(context.Background(), "p1", rec)

	if !result.Unvalidated {
		t.Fatal("result must be flagged unvalidated")
	}
	if got := result.ImageStatus(); got != "unvalidated" {
		t.Errorf("ImageStatus = %q", got)
	}
	if result.MainURL == "" || len(result.GalleryURLs) != 1 {
		t.Errorf("urls must be laid out without checks: main=%q gallery=%v", result.MainURL, result.GalleryURLs)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("network calls = %d, want 0", atomic.LoadInt32(&calls))
	}
}

func TestPipeline_DemoRecordSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		serveImage(w)
	}))
	defer srv.Close()

	rec := &supplier.Record{
		Demo:         true,
		ProductImage: supplier.RawField(srv.URL + "/a.jpg"),
	}

	p := testPipeline(t, Config{})
	result := p.Resolve(context.Background(), "demo1", rec)

	if !result.Unvalidated {
		t.Error("demo records must skip network checks")
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("network calls = %d, want 0", atomic.LoadInt32(&calls))
	}
}
