package importer

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// writeIDListFile создает тестовый Excel-файл с одной колонкой значений
func writeIDListFile(t *testing.T, values []string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, value := range values {
		if err := f.SetCellValue("Sheet1", fmt.Sprintf("A%d", i+1), value); err != nil {
			t.Fatalf("SetCellValue: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "ids.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func TestParseIDListFileWithHeader(t *testing.T) {
	path := writeIDListFile(t, []string{
		"PID",
		"2408300610371613200",
		"CJJT154907",
		"",
		"2408300610371613200", // повтор
		"https://example.com/product/p-163434.html",
	})

	ids, err := ParseIDListFile(path)
	if err != nil {
		t.Fatalf("ParseIDListFile: %v", err)
	}

	expected := []string{
		"2408300610371613200",
		"CJJT154907",
		"https://example.com/product/p-163434.html",
	}
	if len(ids) != len(expected) {
		t.Fatalf("expected %d ids, got %d: %v", len(expected), len(ids), ids)
	}
	for i, want := range expected {
		if ids[i] != want {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want)
		}
	}
}

func TestParseIDListFileNoHeader(t *testing.T) {
	path := writeIDListFile(t, []string{
		"CJJT154907",
		"CJHS209633401",
	})

	ids, err := ParseIDListFile(path)
	if err != nil {
		t.Fatalf("ParseIDListFile: %v", err)
	}

	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d: %v", len(ids), ids)
	}
	if ids[0] != "CJJT154907" {
		t.Errorf("first row must be treated as data, got ids[0] = %q", ids[0])
	}
}

func TestParseIDListFileUnknownHeader(t *testing.T) {
	// Заголовок без ключевых слов и без цифр должен быть пропущен
	path := writeIDListFile(t, []string{
		"Товары для загрузки",
		"CJJT154907",
	})

	ids, err := ParseIDListFile(path)
	if err != nil {
		t.Fatalf("ParseIDListFile: %v", err)
	}

	if len(ids) != 1 || ids[0] != "CJJT154907" {
		t.Errorf("expected [CJJT154907], got %v", ids)
	}
}

func TestParseIDListFileMissingFile(t *testing.T) {
	_, err := ParseIDListFile(filepath.Join(t.TempDir(), "missing.xlsx"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFindIDColumn(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    int
	}{
		{"exact pid", []string{"Name", "PID", "Price"}, 1},
		{"exact sku", []string{"SKU"}, 0},
		{"partial russian", []string{"Наименование", "Артикул поставщика"}, 1},
		{"partial url", []string{"Product URL"}, 0},
		{"no match", []string{"Наименование", "Цена"}, -1},
		{"empty", []string{}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findIDColumn(tt.headers); got != tt.want {
				t.Errorf("findIDColumn(%v) = %d, want %d", tt.headers, got, tt.want)
			}
		})
	}
}

func TestLooksLikeIdentifier(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"2408300610371613200", true},
		{"CJJT154907", true},
		{"https://example.com/p-1.html", true},
		{"Товары для загрузки", false},
		{"", false},
		{"   ", false},
	}

	for _, tt := range tests {
		if got := looksLikeIdentifier(tt.value); got != tt.want {
			t.Errorf("looksLikeIdentifier(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
