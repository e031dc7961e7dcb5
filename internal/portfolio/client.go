package portfolio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/makeuplens/makeuplens/internal/intake"
	"github.com/makeuplens/makeuplens/internal/models"
)

// Client talks to the portfolio endpoints of the analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a portfolio API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// LoadAll fetches the full authoritative collection. The server also reports
// a total; a mismatch with the list length is logged but the list wins.
func (c *Client) LoadAll(ctx context.Context) ([]models.PortfolioItem, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/portfolio", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch portfolio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("portfolio fetch returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Portfolio     []models.PortfolioItem `json:"portfolio"`
		TotalProducts int                    `json:"total_products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio response: %w", err)
	}

	if envelope.TotalProducts != 0 && envelope.TotalProducts != len(envelope.Portfolio) {
		slog.Warn("Portfolio total disagrees with list length",
			"total_products", envelope.TotalProducts, "items", len(envelope.Portfolio))
	}

	return envelope.Portfolio, nil
}

// Add persists an analysis-derived product (no image attached).
func (c *Client) Add(ctx context.Context, product models.Product) error {
	payload, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/portfolio/add", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to add product: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("portfolio add returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Upload persists an entry with its original photo. The server analyzes the
// image as a side effect and echoes the created item plus that analysis.
func (c *Client) Upload(ctx context.Context, handle *intake.PreviewHandle, name, brand, category string) (*models.PortfolioItem, []models.Product, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, handle.Filename()))
	header.Set("Content-Type", handle.MIMEType())

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build multipart request: %w", err)
	}
	if _, err := part.Write(handle.Data()); err != nil {
		return nil, nil, fmt.Errorf("failed to write image payload: %w", err)
	}

	fields := map[string]string{
		"product_name": name,
		"brand":        brand,
		"category":     category,
	}
	for field, value := range fields {
		if err := writer.WriteField(field, value); err != nil {
			return nil, nil, fmt.Errorf("failed to write %s field: %w", field, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to finalize multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/portfolio/upload", &body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upload product: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("portfolio upload returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Product          models.PortfolioItem `json:"product"`
		DetectedAnalysis []models.Product     `json:"detected_analysis"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, nil, fmt.Errorf("failed to decode upload response: %w", err)
	}

	return &envelope.Product, envelope.DetectedAnalysis, nil
}

// Remove requests deletion by id. A 404 is tolerated: the server may report
// an unknown id as a no-op or as an error, and the follow-up LoadAll is what
// decides whether the removal took effect.
func (c *Client) Remove(ctx context.Context, id int) error {
	req, err := http.NewRequestWithContext(ctx, "DELETE", fmt.Sprintf("%s/portfolio/%d", c.baseURL, id), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to remove product: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Info("Remove of unknown portfolio id reported not found", "id", id)
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("portfolio remove returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Products fetches the service's reference catalog of known products.
func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/products", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("products fetch returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Success  bool             `json:"success"`
		Products []models.Product `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode products response: %w", err)
	}

	return envelope.Products, nil
}
