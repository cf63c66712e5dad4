package images

import (
	"context"
	"log/slog"
	"time"

	"importserver/supplier"
)

// Config настройки пайплайна изображений
type Config struct {
	// BaseHost хост для раскрытия root-relative ссылок
	BaseHost string `json:"base_host"`
	// CacheDir каталог контент-адресуемого кэша файлов
	CacheDir string `json:"cache_dir"`
	// ProxyBaseURL база локального proxy-fallback для заблокированных хостов
	ProxyBaseURL string `json:"proxy_base_url"`
	// MaxGallery максимум изображений галереи сверх главного
	MaxGallery     int           `json:"max_gallery"`
	RequestTimeout time.Duration `json:"request_timeout"`
	RatePerSec     float64       `json:"rate_per_sec"`
	UserAgent      string        `json:"-"`
	// SkipValidation пропускает сетевые проверки и скачивание:
	// кандидаты помечаются непроверенными (демо-режим, офлайн-тесты)
	SkipValidation bool `json:"skip_validation"`
}

// SourceStats исходы проверки по одному полю-источнику
type SourceStats struct {
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
}

// Result результат разрешения изображений одного товара.
// Пайплайн никогда не возвращает ошибку: товар без единой картинки —
// это статус, а не сбой импорта
type Result struct {
	MainURL       string   `json:"main_url"`
	MainLocalPath string   `json:"main_local_path"`
	GalleryURLs   []string `json:"gallery_urls"`
	GalleryLocal  []string `json:"gallery_local"`

	Candidates     []Candidate            `json:"candidates"`
	BySource       map[string]SourceStats `json:"by_source"`
	Checked        int                    `json:"checked"`
	ValidCount     int                    `json:"valid_count"`
	InvalidCount   int                    `json:"invalid_count"`
	Downloaded     int                    `json:"downloaded"`
	DownloadFailed int                    `json:"download_failed"`
	Unvalidated    bool                   `json:"unvalidated"`
}

// HasImages есть ли у товара хоть одно локальное изображение
func (r *Result) HasImages() bool {
	return r.MainLocalPath != "" || len(r.GalleryLocal) > 0
}

// ImageStatus сводный статус для карточки каталога
func (r *Result) ImageStatus() string {
	switch {
	case r.Unvalidated:
		return "unvalidated"
	case len(r.Candidates) == 0 || r.ValidCount == 0:
		return "missing"
	case r.MainLocalPath == "":
		return "download_failed"
	case r.InvalidCount > 0 || r.DownloadFailed > 0:
		return "partial"
	default:
		return "ok"
	}
}

// Pipeline связывает все стадии: извлечение, нормализацию, дедупликацию,
// проверку и скачивание. Стадии одного товара строго упорядочены;
// параллелизм достигается обработкой разных товаров в разных воркерах
type Pipeline struct {
	cfg        Config
	validator  *Validator
	downloader *Downloader
	logger     *slog.Logger
}

// NewPipeline создает пайплайн изображений
func NewPipeline(cfg Config) *Pipeline {
	if cfg.BaseHost == "" {
		cfg.BaseHost = DefaultBaseHost
	}
	if cfg.MaxGallery <= 0 {
		cfg.MaxGallery = 15
	}

	return &Pipeline{
		cfg:        cfg,
		validator:  NewValidator(cfg),
		downloader: NewDownloader(cfg),
		logger:     slog.Default().With("component", "image-pipeline"),
	}
}

// Resolve прогоняет карточку через все стадии пайплайна.
// Первый валидный кандидат становится главным изображением, следующие —
// галереей до настроенного максимума. Проверка главного останавливается
// на первом успехе; галерея проверяется до упора, отдельные отказы
// её не прерывают
func (p *Pipeline) Resolve(ctx context.Context, productID string, rec *supplier.Record) *Result {
	result := &Result{
		Candidates: Collect(rec, p.cfg.BaseHost),
		BySource:   make(map[string]SourceStats),
	}

	if len(result.Candidates) == 0 {
		p.logger.Debug("No image candidates in supplier payload", "product_id", productID)
		return result
	}

	if p.cfg.SkipValidation || (rec != nil && rec.Demo) {
		p.fillUnvalidated(result)
		return result
	}

	p.validate(ctx, result)
	p.download(ctx, productID, result)

	p.logger.Info("Image resolution finished",
		"product_id", productID,
		"candidates", len(result.Candidates),
		"valid", result.ValidCount,
		"downloaded", result.Downloaded,
		"status", result.ImageStatus())

	return result
}

// fillUnvalidated раскладывает кандидатов без сетевых проверок
func (p *Pipeline) fillUnvalidated(result *Result) {
	result.Unvalidated = true
	result.MainURL = result.Candidates[0].URL
	for _, c := range result.Candidates[1:] {
		if len(result.GalleryURLs) >= p.cfg.MaxGallery {
			break
		}
		result.GalleryURLs = append(result.GalleryURLs, c.URL)
	}
}

// validate проверяет кандидатов по порядку, пока не наберется главное
// изображение плюс полная галерея
func (p *Pipeline) validate(ctx context.Context, result *Result) {
	needed := 1 + p.cfg.MaxGallery

	for i := range result.Candidates {
		if ctx.Err() != nil {
			return
		}
		if result.ValidCount >= needed {
			break
		}

		c := &result.Candidates[i]
		p.validator.Check(ctx, c)
		result.Checked++

		stats := result.BySource[c.SourceField]
		if c.Valid {
			result.ValidCount++
			stats.Valid++
		} else {
			result.InvalidCount++
			stats.Invalid++
			p.logger.Debug("Image candidate rejected",
				"url", c.URL, "source", c.SourceField, "status", c.StatusCode, "error", c.Err)
		}
		result.BySource[c.SourceField] = stats
	}
}

// download скачивает валидных кандидатов: первый успешно скачанный
// становится главным изображением, остальные — галереей
func (p *Pipeline) download(ctx context.Context, productID string, result *Result) {
	for i := range result.Candidates {
		if ctx.Err() != nil {
			return
		}

		c := result.Candidates[i]
		if !c.Valid {
			continue
		}
		if result.MainLocalPath != "" && len(result.GalleryLocal) >= p.cfg.MaxGallery {
			break
		}

		localPath, err := p.downloader.Download(ctx, productID, c.URL)
		if err != nil {
			result.DownloadFailed++
			p.logger.Warn("Image download failed",
				"url", c.URL, "product_id", productID, "error", err)
			continue
		}
		result.Downloaded++

		if result.MainLocalPath == "" {
			result.MainURL = c.URL
			result.MainLocalPath = localPath
		} else {
			result.GalleryURLs = append(result.GalleryURLs, c.URL)
			result.GalleryLocal = append(result.GalleryLocal, localPath)
		}
	}
}
