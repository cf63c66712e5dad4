package supplier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCatalogAPI мок операций поиска с записью вызовов
type mockCatalogAPI struct {
	primaryCalls   []string
	secondaryCalls []string
	searchCalls    []string
	variantCalls   []string

	primaryFn   func(pid string) (*Record, error)
	secondaryFn func(sku string) (*Record, error)
	searchFn    func(name string) (*Record, error)
	variantsFn  func(pid string) ([]Variant, error)
}

func (m *mockCatalogAPI) QueryByPrimaryKey(ctx context.Context, pid string) (*Record, error) {
	m.primaryCalls = append(m.primaryCalls, pid)
	if m.primaryFn != nil {
		return m.primaryFn(pid)
	}
	return nil, &NotFoundError{Input: pid, Attempts: []string{MethodPrimaryKey}}
}

func (m *mockCatalogAPI) QueryBySecondaryKey(ctx context.Context, sku string) (*Record, error) {
	m.secondaryCalls = append(m.secondaryCalls, sku)
	if m.secondaryFn != nil {
		return m.secondaryFn(sku)
	}
	return nil, &NotFoundError{Input: sku, Attempts: []string{MethodSecondaryKey}}
}

func (m *mockCatalogAPI) SearchByName(ctx context.Context, name string) (*Record, error) {
	m.searchCalls = append(m.searchCalls, name)
	if m.searchFn != nil {
		return m.searchFn(name)
	}
	return nil, &NotFoundError{Input: name, Attempts: []string{MethodNameSearch}}
}

func (m *mockCatalogAPI) ListVariants(ctx context.Context, pid string) ([]Variant, error) {
	m.variantCalls = append(m.variantCalls, pid)
	if m.variantsFn != nil {
		return m.variantsFn(pid)
	}
	return nil, nil
}

// Фирменный код поставщика: сначала поиск по SKU, первичный ключ не трогаем,
// если SKU уже дал карточку
func TestFetch_VendorSkuHitsSecondaryFirst(t *testing.T) {
	api := &mockCatalogAPI{
		secondaryFn: func(sku string) (*Record, error) {
			return &Record{Pid: "2408300610291613200", ProductSku: sku, NameEn: "Cat Tunnel"}, nil
		},
		variantsFn: func(pid string) ([]Variant, error) {
			return []Variant{{Vid: "v1", VariantSku: "CJCT25677400001-S"}}, nil
		},
	}
	fetcher := NewFetcher(api)

	id := ResolveIdentifier("CJCT25677400001")
	require.Equal(t, KindSkuCode, id.Kind)
	require.Equal(t, StrategySecondaryThenPrimary, id.Strategy)

	rec, method, err := fetcher.Fetch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, MethodSecondaryKey, method)
	assert.Equal(t, "Cat Tunnel", rec.NameEn)
	assert.Len(t, rec.Variants, 1)

	assert.Empty(t, api.primaryCalls, "primary lookup must not run after a secondary hit")
	assert.Equal(t, []string{"CJCT25677400001"}, api.secondaryCalls)
}

func TestFetch_SecondaryThenPrimaryFallsBack(t *testing.T) {
	api := &mockCatalogAPI{
		primaryFn: func(pid string) (*Record, error) {
			return &Record{Pid: pid, NameEn: "Fallback Hit"}, nil
		},
	}
	fetcher := NewFetcher(api)

	id := Identifier{RawInput: "CJHS205773901", Kind: KindSkuCode, Value: "CJHS205773901", Strategy: StrategySecondaryThenPrimary}

	rec, method, err := fetcher.Fetch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, MethodPrimaryKey, method)
	assert.Equal(t, "Fallback Hit", rec.NameEn)

	assert.Equal(t, []string{"CJHS205773901"}, api.secondaryCalls)
	assert.Equal(t, []string{"CJHS205773901"}, api.primaryCalls)
}

// Цепочка TryBoth конечна: ровно два эндпоинта, затем типизированный отказ
// со списком испробованных методов
func TestFetch_TryBothTerminatesAfterTwoEndpoints(t *testing.T) {
	api := &mockCatalogAPI{}
	fetcher := NewFetcher(api)

	id := Identifier{RawInput: "16215540", Kind: KindSecondaryKey, Value: "16215540", Strategy: StrategyTryBoth}

	_, _, err := fetcher.Fetch(context.Background(), id)
	require.Error(t, err)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "16215540", nf.Input)
	assert.Equal(t, []string{MethodPrimaryKey, MethodSecondaryKey}, nf.Attempts)

	assert.Len(t, api.primaryCalls, 1)
	assert.Len(t, api.secondaryCalls, 1)
	assert.Empty(t, api.searchCalls)
}

// Транспортная ошибка прерывает цепочку сразу: следующий шаг не выполняется
func TestFetch_TransportErrorAbortsChain(t *testing.T) {
	upstream := &StatusError{Status: 502, Body: "bad gateway"}
	api := &mockCatalogAPI{
		secondaryFn: func(sku string) (*Record, error) {
			return nil, upstream
		},
	}
	fetcher := NewFetcher(api)

	id := Identifier{Kind: KindSkuCode, Value: "CJHS205773901", Strategy: StrategySecondaryThenPrimary}

	_, _, err := fetcher.Fetch(context.Background(), id)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 502, statusErr.Status)

	assert.Empty(t, api.primaryCalls, "chain must abort on transport error, not fall through")
}

// Отказ шага вариантов деградирует до карточки без вариантов
func TestFetch_VariantFailureDegrades(t *testing.T) {
	api := &mockCatalogAPI{
		primaryFn: func(pid string) (*Record, error) {
			return &Record{Pid: pid, NameEn: "Dog Bed"}, nil
		},
		variantsFn: func(pid string) ([]Variant, error) {
			return nil, &StatusError{Status: 500, Body: "variant service down"}
		},
	}
	fetcher := NewFetcher(api)

	id := Identifier{Kind: KindPrimaryKey, Value: "2408300610291613200", Strategy: StrategyByPrimaryKey}

	rec, _, err := fetcher.Fetch(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, rec.Variants)
}

// Варианты запрашиваются по каноническому ключу карточки, а не по вводу
func TestFetch_VariantsUseCanonicalKey(t *testing.T) {
	api := &mockCatalogAPI{
		secondaryFn: func(sku string) (*Record, error) {
			return &Record{Pid: "2408300610291613200", ProductSku: sku}, nil
		},
	}
	fetcher := NewFetcher(api)

	id := Identifier{Kind: KindSkuCode, Value: "CJCT25677400001", Strategy: StrategySecondaryThenPrimary}

	_, _, err := fetcher.Fetch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"2408300610291613200"}, api.variantCalls)
}

// Нераспознанный ввод отклоняется до единого сетевого вызова
func TestFetch_UnrecognizedInputRefused(t *testing.T) {
	api := &mockCatalogAPI{}
	fetcher := NewFetcher(api)

	id := ResolveIdentifier("???")
	require.Equal(t, KindUnrecognized, id.Kind)

	_, _, err := fetcher.Fetch(context.Background(), id)
	var unrec *UnrecognizedInputError
	require.ErrorAs(t, err, &unrec)
	assert.NotEmpty(t, unrec.Hint)

	assert.Empty(t, api.primaryCalls)
	assert.Empty(t, api.secondaryCalls)
	assert.Empty(t, api.searchCalls)
}

func TestFetch_CancelledContext(t *testing.T) {
	api := &mockCatalogAPI{}
	fetcher := NewFetcher(api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id := Identifier{Kind: KindPrimaryKey, Value: "2408300610291613200", Strategy: StrategyByPrimaryKey}

	_, _, err := fetcher.Fetch(ctx, id)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.primaryCalls)
}

// URL-slug без цифр ищется по восстановленному названию одним шагом
func TestFetch_SlugFallsBackToNameSearch(t *testing.T) {
	api := &mockCatalogAPI{
		searchFn: func(name string) (*Record, error) {
			return &Record{Pid: "123456789012345678", NameEn: "Dog Chew Toy"}, nil
		},
	}
	fetcher := NewFetcher(api)

	id := Identifier{Kind: KindUrlDerived, Value: "dog-chew-toy", Strategy: StrategyTryBoth}

	rec, method, err := fetcher.Fetch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, MethodNameSearch, method)
	assert.Equal(t, "Dog Chew Toy", rec.NameEn)

	assert.Equal(t, []string{"dog chew toy"}, api.searchCalls)
	assert.Empty(t, api.primaryCalls)
	assert.Empty(t, api.secondaryCalls)
}
