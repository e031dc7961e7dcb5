package export

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/makeuplens/makeuplens/internal/models"
)

func samplePortfolio() []models.PortfolioItem {
	return []models.PortfolioItem{
		{
			Product: models.Product{
				Name:        "Rouge Dior Lipstick",
				Brand:       "Dior",
				Category:    "Lip Color",
				Shade:       "999 Rouge Dior",
				Ingredients: []string{"Octyldodecanol", "Synthetic Wax", "Tocopherol"},
				Source:      "Dior Official Website - Product Ingredients",
				PriceRange:  "$38-42",
			},
			ID:        1,
			AddedDate: "2025-05-01 10:30:00",
		},
		{
			Product: models.Product{
				Name:        "My Custom Product",
				Brand:       "Unknown Brand",
				Category:    "Makeup Product",
				Ingredients: []string{"Glycerin"},
			},
			ID:          2,
			AddedDate:   "2025-05-02 09:00:00",
			CustomEntry: true,
			DetectedProducts: []models.Product{
				{Name: "Better Than Sex Mascara", Brand: "Too Faced", Category: "Eye Makeup", Ingredients: []string{"Water (Aqua)", "Paraffin"}},
			},
		},
	}
}

func TestPortfolioRoundTrip(t *testing.T) {
	for _, ext := range []string{".parquet", ".jsonl"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "portfolio"+ext)
			items := samplePortfolio()

			if err := WritePortfolio(path, items); err != nil {
				t.Fatalf("WritePortfolio failed: %v", err)
			}

			got, err := ReadPortfolio(path)
			if err != nil {
				t.Fatalf("ReadPortfolio failed: %v", err)
			}

			if len(got) != len(items) {
				t.Fatalf("Expected %d items, got %d", len(items), len(got))
			}
			for i := range items {
				if got[i].ID != items[i].ID {
					t.Errorf("Item %d: expected id %d, got %d", i, items[i].ID, got[i].ID)
				}
				if !reflect.DeepEqual(got[i].Ingredients, items[i].Ingredients) {
					t.Errorf("Item %d: ingredients changed: %v vs %v", i, got[i].Ingredients, items[i].Ingredients)
				}
				if !reflect.DeepEqual(got[i].DetectedProducts, items[i].DetectedProducts) {
					t.Errorf("Item %d: detected products changed: %v vs %v", i, got[i].DetectedProducts, items[i].DetectedProducts)
				}
				if got[i].CustomEntry != items[i].CustomEntry {
					t.Errorf("Item %d: custom_entry changed", i)
				}
				if got[i].AddedDate != items[i].AddedDate {
					t.Errorf("Item %d: added_date changed: %s vs %s", i, got[i].AddedDate, items[i].AddedDate)
				}
			}
		})
	}
}

func TestExportDropsImageData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.jsonl")
	items := samplePortfolio()
	items[0].ImageData = "data:image/jpeg;base64,AAAA"

	if err := WritePortfolio(path, items); err != nil {
		t.Fatalf("WritePortfolio failed: %v", err)
	}

	got, err := ReadPortfolio(path)
	if err != nil {
		t.Fatalf("ReadPortfolio failed: %v", err)
	}
	if got[0].ImageData != "" {
		t.Error("Expected embedded image data to be dropped from exports")
	}
}

func TestUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.csv")

	if err := WritePortfolio(path, samplePortfolio()); err == nil {
		t.Error("Expected error for unsupported write format, got nil")
	}
	if _, err := ReadPortfolio(path); err == nil {
		t.Error("Expected error for unsupported read format, got nil")
	}
}
