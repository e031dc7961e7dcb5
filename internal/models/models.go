package models

// Product is a makeup item identified by the analysis service or saved by
// the user. Instances returned by analysis are treated as immutable; saving
// one copies it into a PortfolioItem server-side.
type Product struct {
	Name            string   `json:"name" yaml:"name"`
	Brand           string   `json:"brand" yaml:"brand"`
	Category        string   `json:"category" yaml:"category"`
	Shade           string   `json:"shade,omitempty" yaml:"shade,omitempty"`
	Ingredients     []string `json:"ingredients" yaml:"ingredients"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	Source          string   `json:"source,omitempty" yaml:"source,omitempty"`
	ManufacturerURL string   `json:"manufacturer_url,omitempty" yaml:"manufacturer_url,omitempty"`
	PriceRange      string   `json:"price_range,omitempty" yaml:"price_range,omitempty"`
}

// PortfolioItem is a saved portfolio entry. ID and AddedDate are assigned by
// the server when the entry is created; the client never fabricates them.
// AddedDate is kept in the server's wire format ("2006-01-02 15:04:05").
type PortfolioItem struct {
	Product          `yaml:",inline"`
	ID               int       `json:"id" yaml:"id"`
	ImageData        string    `json:"image_data,omitempty" yaml:"image_data,omitempty"`
	DetectedProducts []Product `json:"detected_products,omitempty" yaml:"detected_products,omitempty"`
	AddedDate        string    `json:"added_date,omitempty" yaml:"added_date,omitempty"`
	CustomEntry      bool      `json:"custom_entry,omitempty" yaml:"custom_entry,omitempty"`
}

// AnalysisResult is the structured outcome of one analysis submission.
// When Success is true, ProductsDetected equals len(Products).
type AnalysisResult struct {
	Success          bool      `json:"success" yaml:"success"`
	ProductsDetected int       `json:"products_detected" yaml:"products_detected"`
	Products         []Product `json:"products" yaml:"products"`
}

// Clone returns a deep copy so callers can hold a snapshot that later
// re-analysis or reset cannot mutate.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := &AnalysisResult{
		Success:          r.Success,
		ProductsDetected: r.ProductsDetected,
	}
	if r.Products != nil {
		out.Products = make([]Product, len(r.Products))
		for i, p := range r.Products {
			out.Products[i] = p.Clone()
		}
	}
	return out
}

// Clone returns a copy of the product with its own ingredients slice.
func (p Product) Clone() Product {
	out := p
	if p.Ingredients != nil {
		out.Ingredients = append([]string(nil), p.Ingredients...)
	}
	return out
}
