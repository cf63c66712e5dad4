package catalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportFormat формат выгрузки каталога
type ExportFormat string

const (
	FormatJSON  ExportFormat = "json"
	FormatCSV   ExportFormat = "csv"
	FormatExcel ExportFormat = "excel"
)

// Exporter выгружает товары каталога в файл
type Exporter struct{}

// NewExporter создает экспортер каталога
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export выгружает товары в указанном формате
func (e *Exporter) Export(products []Product, format ExportFormat, filename string) error {
	switch format {
	case FormatJSON:
		return e.ExportToJSON(products, filename)
	case FormatCSV:
		return e.ExportToCSV(products, filename)
	case FormatExcel:
		return e.ExportToExcel(products, filename)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

// ExportToJSON экспортирует каталог в JSON
func (e *Exporter) ExportToJSON(products []Product, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	result := map[string]interface{}{
		"exported_at": time.Now().Format(time.RFC3339),
		"total":       len(products),
		"products":    products,
	}

	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// ExportToCSV экспортирует каталог в CSV
func (e *Exporter) ExportToCSV(products []Product, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Заголовки
	headers := []string{
		"ID", "Supplier PID", "SKU", "Title", "Category", "Pet Type",
		"Price", "Variants", "Stock", "Enrich Status", "Image Status",
		"Eligible", "Published", "Imported At",
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	// Данные
	for _, p := range products {
		record := []string{
			p.ID,
			p.SupplierPid,
			p.SupplierSku,
			p.Title,
			p.Category,
			p.PetType,
			fmt.Sprintf("%.2f", p.Price),
			fmt.Sprintf("%d", len(p.Variants)),
			fmt.Sprintf("%d", totalStock(p)),
			p.EnrichStatus,
			p.ImageStatus,
			fmt.Sprintf("%t", p.Eligibility.OK),
			fmt.Sprintf("%t", p.Published),
			p.ImportedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return nil
}

// ExportToExcel экспортирует каталог в Excel
func (e *Exporter) ExportToExcel(products []Product, filename string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Catalog"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	// Стиль заголовков
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	// Заголовки
	headers := []string{
		"ID", "Supplier PID", "SKU", "Title", "Category", "Pet Type",
		"Price", "Variants", "Stock", "Enrich Status", "Image Status",
		"Eligible", "Published", "Imported At",
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	// Данные
	for rowIdx, p := range products {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), p.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), p.SupplierPid)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), p.SupplierSku)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), p.Title)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), p.Category)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), p.PetType)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), p.Price)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), len(p.Variants))
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), totalStock(p))
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), p.EnrichStatus)
		f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), p.ImageStatus)
		f.SetCellValue(sheetName, fmt.Sprintf("L%d", row), p.Eligibility.OK)
		f.SetCellValue(sheetName, fmt.Sprintf("M%d", row), p.Published)
		f.SetCellValue(sheetName, fmt.Sprintf("N%d", row), p.ImportedAt.Format(time.RFC3339))
	}

	// Автоширина колонок
	for i := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}

	f.SetActiveSheet(index)

	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}

	return nil
}

// totalStock суммарный остаток всех вариантов товара
func totalStock(p Product) int {
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}
