package supplier

import (
	"context"
	"log/slog"
	"strings"
)

// CatalogAPI операции поиска, которые нужны orchestrator-у.
// Выделен в интерфейс для подмены в тестах
type CatalogAPI interface {
	QueryByPrimaryKey(ctx context.Context, pid string) (*Record, error)
	QueryBySecondaryKey(ctx context.Context, sku string) (*Record, error)
	SearchByName(ctx context.Context, name string) (*Record, error)
	ListVariants(ctx context.Context, pid string) ([]Variant, error)
}

// Fetcher выполняет цепочку fallback-поисков по стратегии идентификатора
// и дополняет найденную карточку вариантами
type Fetcher struct {
	api    CatalogAPI
	logger *slog.Logger
}

// NewFetcher создает orchestrator поверх клиента API
func NewFetcher(api CatalogAPI) *Fetcher {
	return &Fetcher{
		api:    api,
		logger: slog.Default().With("component", "supplier-fetcher"),
	}
}

// lookupAttempt один шаг цепочки поиска
type lookupAttempt struct {
	method string
	run    func(ctx context.Context) (*Record, error)
}

// Fetch ищет карточку по стратегии идентификатора. Возвращает карточку и
// метод, которым она найдена.
//
// Шаги выполняются по порядку: ответ "нет данных" переключает на следующий
// шаг, транспортная ошибка (после исчерпания повторов в клиенте) прерывает
// всю цепочку. После находки варианты запрашиваются по каноническому ключу
// самой карточки, а не по исходному вводу; этот шаг best-effort — его отказ
// дает карточку без вариантов, но не ошибку
func (f *Fetcher) Fetch(ctx context.Context, id Identifier) (*Record, string, error) {
	if id.Kind == KindUnrecognized {
		// Инвариант резолвера: для нераспознанного ввода поиск не выполняется
		return nil, "", &UnrecognizedInputError{Input: id.RawInput, Hint: id.Hint}
	}

	attempts := f.attemptsFor(id)
	tried := make([]string, 0, len(attempts))

	for _, attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		tried = append(tried, attempt.method)
		rec, err := attempt.run(ctx)
		if err != nil {
			if IsNotFound(err) {
				f.logger.Debug("Lookup step returned no data, falling back",
					"input", id.Value, "method", attempt.method)
				continue
			}
			return nil, "", err
		}

		f.enrichWithVariants(ctx, rec)
		return rec, attempt.method, nil
	}

	return nil, "", &NotFoundError{Input: id.Value, Attempts: tried}
}

// attemptsFor строит упорядоченный список шагов поиска по стратегии.
// Для URL-идентификаторов без единой цифры в значении единственный разумный
// шаг — поиск по названию, восстановленному из slug
func (f *Fetcher) attemptsFor(id Identifier) []lookupAttempt {
	byPrimary := lookupAttempt{
		method: MethodPrimaryKey,
		run: func(ctx context.Context) (*Record, error) {
			return f.api.QueryByPrimaryKey(ctx, id.Value)
		},
	}
	bySecondary := lookupAttempt{
		method: MethodSecondaryKey,
		run: func(ctx context.Context) (*Record, error) {
			return f.api.QueryBySecondaryKey(ctx, id.Value)
		},
	}

	if id.Kind == KindUrlDerived && !strings.ContainsAny(id.Value, "0123456789") {
		name := humanizeSlug(id.Value)
		return []lookupAttempt{{
			method: MethodNameSearch,
			run: func(ctx context.Context) (*Record, error) {
				return f.api.SearchByName(ctx, name)
			},
		}}
	}

	switch id.Strategy {
	case StrategyByPrimaryKey:
		return []lookupAttempt{byPrimary}
	case StrategyBySecondaryKey:
		return []lookupAttempt{bySecondary}
	case StrategySecondaryThenPrimary:
		return []lookupAttempt{bySecondary, byPrimary}
	case StrategyTryBoth:
		return []lookupAttempt{byPrimary, bySecondary}
	default:
		return []lookupAttempt{byPrimary, bySecondary}
	}
}

// enrichWithVariants дополняет карточку вариантами по её каноническому ключу.
// Отказ здесь деградирует до карточки без вариантов
func (f *Fetcher) enrichWithVariants(ctx context.Context, rec *Record) {
	if rec == nil || rec.Pid == "" || len(rec.Variants) > 0 {
		return
	}

	variants, err := f.api.ListVariants(ctx, rec.Pid)
	if err != nil {
		f.logger.Warn("Variant fetch failed, continuing with zero variants",
			"pid", rec.Pid, "error", err)
		return
	}
	rec.Variants = variants
}

// humanizeSlug превращает slug обратно в поисковую фразу
func humanizeSlug(slug string) string {
	s := strings.NewReplacer("-", " ", "_", " ", "+", " ").Replace(slug)
	return strings.Join(strings.Fields(s), " ")
}
