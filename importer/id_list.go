package importer

import (
	"fmt"
	"log"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseIDListFile парсит Excel-файл со списком идентификаторов товаров
// поставщика. В ячейках могут быть PID, SKU или ссылки на карточку товара,
// разбор строки в конкретный тип идентификатора происходит позже.
func ParseIDListFile(filePath string) ([]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	col := findIDColumn(rows[0])
	startRow := 1
	if col == -1 {
		// Заголовка нет: берем первую колонку, а первую строку
		// считаем данными, если она похожа на идентификатор
		col = 0
		if len(rows[0]) > 0 && looksLikeIdentifier(rows[0][0]) {
			startRow = 0
		}
	}

	log.Printf("Found ID column %d, parsing %d rows", col, len(rows)-startRow)

	var ids []string
	seen := make(map[string]bool)

	for rowIdx := startRow; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		if col >= len(row) {
			continue
		}

		value := strings.TrimSpace(row[col])
		if value == "" {
			continue
		}

		// Повторы в файле не редкость, оставляем первое вхождение
		if seen[value] {
			continue
		}
		seen[value] = true
		ids = append(ids, value)
	}

	return ids, nil
}

// findIDColumn ищет колонку с идентификаторами по заголовку
func findIDColumn(headers []string) int {
	exact := []string{"pid", "sku", "id", "url"}
	for i, header := range headers {
		h := strings.TrimSpace(strings.ToLower(header))
		for _, keyword := range exact {
			if h == keyword {
				return i
			}
		}
	}

	partial := []string{"идентификатор", "артикул", "ссылка", "pid", "sku", "url"}
	for i, header := range headers {
		h := strings.TrimSpace(strings.ToLower(header))
		for _, keyword := range partial {
			if strings.Contains(h, keyword) {
				return i
			}
		}
	}

	return -1
}

// looksLikeIdentifier отличает идентификатор от текстового заголовка.
// PID, SKU и ссылки всегда содержат цифры или схему URL
func looksLikeIdentifier(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if strings.Contains(value, "://") {
		return true
	}
	for _, r := range value {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
