package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/makeuplens/makeuplens/internal/models"
	"github.com/parquet-go/parquet-go"
)

// Row is the flat on-disk shape of a portfolio entry. Nested detected
// products are carried as a JSON column; embedded image data is dropped
// from exports (it is preview material, not portfolio data).
type Row struct {
	ID                   int64    `parquet:"id" json:"id"`
	Name                 string   `parquet:"name" json:"name"`
	Brand                string   `parquet:"brand" json:"brand"`
	Category             string   `parquet:"category" json:"category"`
	Shade                string   `parquet:"shade,optional" json:"shade,omitempty"`
	Ingredients          []string `parquet:"ingredients,list" json:"ingredients"`
	Description          string   `parquet:"description,optional" json:"description,omitempty"`
	Source               string   `parquet:"source,optional" json:"source,omitempty"`
	ManufacturerURL      string   `parquet:"manufacturer_url,optional" json:"manufacturer_url,omitempty"`
	PriceRange           string   `parquet:"price_range,optional" json:"price_range,omitempty"`
	AddedDate            string   `parquet:"added_date,optional" json:"added_date,omitempty"`
	CustomEntry          bool     `parquet:"custom_entry" json:"custom_entry"`
	DetectedProductsJSON string   `parquet:"detected_products_json,optional" json:"detected_products_json,omitempty"`
}

// WritePortfolio writes a portfolio snapshot to path. The format follows the
// extension: .parquet or .jsonl/.json.
func WritePortfolio(path string, items []models.PortfolioItem) error {
	rows, err := toRows(items)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".parquet":
		return writeParquet(path, rows)
	case ".jsonl", ".json":
		return writeJSONL(path, rows)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: .parquet, .jsonl)", ext)
	}
}

// ReadPortfolio loads a previously exported snapshot.
func ReadPortfolio(path string) ([]models.PortfolioItem, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var rows []Row
	var err error
	switch ext {
	case ".parquet":
		rows, err = readParquet(path)
	case ".jsonl", ".json":
		rows, err = readJSONL(path)
	default:
		return nil, fmt.Errorf("unsupported export format: %s (supported: .parquet, .jsonl)", ext)
	}
	if err != nil {
		return nil, err
	}

	return fromRows(rows)
}

func toRows(items []models.PortfolioItem) ([]Row, error) {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		row := Row{
			ID:              int64(item.ID),
			Name:            item.Name,
			Brand:           item.Brand,
			Category:        item.Category,
			Shade:           item.Shade,
			Ingredients:     item.Ingredients,
			Description:     item.Description,
			Source:          item.Source,
			ManufacturerURL: item.ManufacturerURL,
			PriceRange:      item.PriceRange,
			AddedDate:       item.AddedDate,
			CustomEntry:     item.CustomEntry,
		}
		if len(item.DetectedProducts) > 0 {
			detected, err := json.Marshal(item.DetectedProducts)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal detected products for id %d: %w", item.ID, err)
			}
			row.DetectedProductsJSON = string(detected)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func fromRows(rows []Row) ([]models.PortfolioItem, error) {
	items := make([]models.PortfolioItem, 0, len(rows))
	for _, row := range rows {
		item := models.PortfolioItem{
			Product: models.Product{
				Name:            row.Name,
				Brand:           row.Brand,
				Category:        row.Category,
				Shade:           row.Shade,
				Ingredients:     row.Ingredients,
				Description:     row.Description,
				Source:          row.Source,
				ManufacturerURL: row.ManufacturerURL,
				PriceRange:      row.PriceRange,
			},
			ID:          int(row.ID),
			AddedDate:   row.AddedDate,
			CustomEntry: row.CustomEntry,
		}
		if row.DetectedProductsJSON != "" {
			if err := json.Unmarshal([]byte(row.DetectedProductsJSON), &item.DetectedProducts); err != nil {
				return nil, fmt.Errorf("failed to parse detected products for id %d: %w", row.ID, err)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func writeParquet(path string, rows []Row) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[Row](file)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}

	slog.Info("Portfolio exported", "path", path, "format", "parquet", "items", len(rows))
	return nil
}

func readParquet(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	var rows []Row
	batch := make([]Row, 128)
	for {
		n, err := reader.Read(batch)
		if n > 0 {
			rows = append(rows, batch[:n]...)
		}
		if err != nil {
			break
		}
	}
	return rows, nil
}

func writeJSONL(path string, rows []Row) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to write JSONL row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush export file: %w", err)
	}

	slog.Info("Portfolio exported", "path", path, "format", "jsonl", "items", len(rows))
	return nil
}

func readJSONL(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer file.Close()

	var rows []Row
	scanner := bufio.NewScanner(file)

	const maxCapacity = 10 * 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row Row
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading export file: %w", err)
	}
	return rows, nil
}
