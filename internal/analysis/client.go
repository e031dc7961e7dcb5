package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/makeuplens/makeuplens/internal/intake"
	"github.com/makeuplens/makeuplens/internal/models"
)

// ErrAnalysisFailed covers every endpoint-originated failure: network error,
// non-2xx response, undecodable payload, or a semantically unsuccessful
// result. The underlying cause is logged but callers see one error kind.
var ErrAnalysisFailed = errors.New("analysis failed")

// Client talks to the analysis endpoint. The http.Client carries no timeout:
// the caller bounds the request through ctx and treats expiry as a failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an analysis endpoint client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Analyze submits the image as a multipart request to /analyze-makeup and
// decodes the structured result. apiKey is included as a form field when
// non-empty. The client never retries; a metered remote analysis must be
// retried by explicit user action.
func (c *Client) Analyze(ctx context.Context, handle *intake.PreviewHandle, apiKey string) (*models.AnalysisResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := createImagePart(writer, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart request: %w", err)
	}
	if _, err := part.Write(handle.Data()); err != nil {
		return nil, fmt.Errorf("failed to write image payload: %w", err)
	}

	if apiKey != "" {
		if err := writer.WriteField("api_key", apiKey); err != nil {
			return nil, fmt.Errorf("failed to write api_key field: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/analyze-makeup", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("Analysis request failed", "cause", "network", "err", err)
		return nil, fmt.Errorf("%w: could not reach analysis endpoint", ErrAnalysisFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		slog.Error("Analysis request failed", "cause", "status", "status", resp.StatusCode, "body", string(respBody))
		return nil, fmt.Errorf("%w: endpoint returned status %d", ErrAnalysisFailed, resp.StatusCode)
	}

	var result models.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Error("Analysis request failed", "cause", "decode", "err", err)
		return nil, fmt.Errorf("%w: undecodable response payload", ErrAnalysisFailed)
	}

	if !result.Success {
		slog.Error("Analysis request failed", "cause", "semantic", "products_detected", result.ProductsDetected)
		return nil, fmt.Errorf("%w: service reported failure", ErrAnalysisFailed)
	}

	// A success envelope must be internally consistent. Anything else is a
	// protocol violation, not a partial result to expose.
	if result.ProductsDetected != len(result.Products) {
		slog.Error("Analysis request failed", "cause", "protocol",
			"products_detected", result.ProductsDetected, "products", len(result.Products))
		return nil, fmt.Errorf("%w: product count mismatch in response", ErrAnalysisFailed)
	}

	return &result, nil
}

// Health checks service reachability via /healthz. Advisory only.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach analysis service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func createImagePart(writer *multipart.Writer, handle *intake.PreviewHandle) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, handle.Filename()))
	header.Set("Content-Type", handle.MIMEType())
	return writer.CreatePart(header)
}
