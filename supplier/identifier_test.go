package supplier

import (
	"strings"
	"testing"
)

func TestResolveIdentifier(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantKind     IdentifierKind
		wantValue    string
		wantStrategy LookupStrategy
	}{
		{
			name:         "vendor sku code",
			input:        "CJCT25677400001",
			wantKind:     KindSkuCode,
			wantValue:    "CJCT25677400001",
			wantStrategy: StrategySecondaryThenPrimary,
		},
		{
			name:         "vendor sku code lowercase",
			input:        "cjct25677400001",
			wantKind:     KindSkuCode,
			wantValue:    "CJCT25677400001",
			wantStrategy: StrategySecondaryThenPrimary,
		},
		{
			name:         "long numeric primary key",
			input:        "2408300610291613200",
			wantKind:     KindPrimaryKey,
			wantValue:    "2408300610291613200",
			wantStrategy: StrategyByPrimaryKey,
		},
		{
			name:         "uuid style primary key",
			input:        "000B9312-456A-4D31-94BD-B083E2A198E8",
			wantKind:     KindPrimaryKey,
			wantValue:    "000B9312-456A-4D31-94BD-B083E2A198E8",
			wantStrategy: StrategyByPrimaryKey,
		},
		{
			name:         "short numeric treated as secondary key",
			input:        "16215540",
			wantKind:     KindSecondaryKey,
			wantValue:    "16215540",
			wantStrategy: StrategyTryBoth,
		},
		{
			name:         "alphanumeric sku",
			input:        "TOY-2044-RED",
			wantKind:     KindSecondaryKey,
			wantValue:    "TOY-2044-RED",
			wantStrategy: StrategyTryBoth,
		},
		{
			name:         "url with pid query param",
			input:        "https://example.com/product?pid=2408300610291613200",
			wantKind:     KindUrlDerived,
			wantValue:    "2408300610291613200",
			wantStrategy: StrategyByPrimaryKey,
		},
		{
			name:         "url with sku query param",
			input:        "https://shop.example.com/item?sku=CJCT25677400001",
			wantKind:     KindUrlDerived,
			wantValue:    "CJCT25677400001",
			wantStrategy: StrategySecondaryThenPrimary,
		},
		{
			name:         "url with slug id segment",
			input:        "https://example.com/product/pet-camera-p-1621554.html",
			wantKind:     KindUrlDerived,
			wantValue:    "1621554",
			wantStrategy: StrategyTryBoth,
		},
		{
			name:         "protocol relative url",
			input:        "//example.com/product/2408300610291613200",
			wantKind:     KindUrlDerived,
			wantValue:    "2408300610291613200",
			wantStrategy: StrategyByPrimaryKey,
		},
		{
			name:         "url without scheme",
			input:        "example.com/item/CJHS2057739",
			wantKind:     KindUrlDerived,
			wantValue:    "CJHS2057739",
			wantStrategy: StrategySecondaryThenPrimary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveIdentifier(tt.input)

			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Value != tt.wantValue {
				t.Errorf("Value = %q, want %q", got.Value, tt.wantValue)
			}
			if got.Strategy != tt.wantStrategy {
				t.Errorf("Strategy = %v, want %v", got.Strategy, tt.wantStrategy)
			}
			if got.RawInput != tt.input {
				t.Errorf("RawInput = %q, want %q", got.RawInput, tt.input)
			}
		})
	}
}

func TestResolveIdentifier_Unrecognized(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty string", input: ""},
		{name: "spaces only", input: "   "},
		{name: "too short numeric", input: "123"},
		{name: "plain words", input: "собачья игрушка"},
		{name: "punctuation", input: "???!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveIdentifier(tt.input)

			if got.Kind != KindUnrecognized {
				t.Errorf("Kind = %v, want %v", got.Kind, KindUnrecognized)
			}
			if got.Hint == "" {
				t.Error("Hint should explain why the input was not recognized")
			}
		})
	}
}

// TestResolveIdentifier_Totality проверяет, что резолвер тотален:
// любой непустой вход дает результат без паники
func TestResolveIdentifier_Totality(t *testing.T) {
	inputs := []string{
		"CJ", "0", strings.Repeat("9", 50), strings.Repeat("a", 200),
		"http://", "https://example.com", "///", "a.b/c",
		"%%%", "\thello\n", "CJCT-123", "товар-123456",
	}

	for _, input := range inputs {
		got := ResolveIdentifier(input)
		if got.Kind == "" {
			t.Errorf("ResolveIdentifier(%q) returned empty kind", input)
		}
		if got.Kind == KindUnrecognized && got.Strategy != "" {
			t.Errorf("ResolveIdentifier(%q): unrecognized input must carry no lookup strategy", input)
		}
	}
}
