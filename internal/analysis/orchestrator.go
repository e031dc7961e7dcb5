package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makeuplens/makeuplens/internal/config"
	"github.com/makeuplens/makeuplens/internal/intake"
	"github.com/makeuplens/makeuplens/internal/models"
)

var (
	// ErrAlreadyInProgress rejects a second Analyze call issued before the
	// first resolves. Duplicate submissions are billed analyses.
	ErrAlreadyInProgress = errors.New("analysis already in progress")

	// ErrMissingCredential is returned before any network I/O when the
	// deployment variant requires an API key and none is configured.
	ErrMissingCredential = errors.New("missing analysis credential")
)

// Submitter is the wire-level half of the orchestrator, satisfied by Client.
type Submitter interface {
	Analyze(ctx context.Context, handle *intake.PreviewHandle, apiKey string) (*models.AnalysisResult, error)
}

// Orchestrator validates and issues analysis requests: fail-fast credential
// checks, single-flight guarding, and request correlation ids for logs.
type Orchestrator struct {
	cfg       config.Config
	submitter Submitter

	mu       sync.Mutex
	inFlight bool
}

// NewOrchestrator wires an orchestrator to the configured endpoint.
func NewOrchestrator(cfg config.Config) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		submitter: NewClient(cfg.EndpointBase),
	}
}

// NewOrchestratorWithSubmitter injects a submitter, used by tests.
func NewOrchestratorWithSubmitter(cfg config.Config, s Submitter) *Orchestrator {
	return &Orchestrator{cfg: cfg, submitter: s}
}

// Analyze submits the handle for analysis. Validation failures resolve
// locally with zero network calls; a concurrent call is rejected rather than
// queued or silently dropped.
func (o *Orchestrator) Analyze(ctx context.Context, handle *intake.PreviewHandle) (*models.AnalysisResult, error) {
	if handle == nil || handle.Size() == 0 {
		return nil, fmt.Errorf("%w: no image to analyze", intake.ErrInvalidInput)
	}
	if o.cfg.CredentialRequired && strings.TrimSpace(o.cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}

	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return nil, ErrAlreadyInProgress
	}
	o.inFlight = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	requestID := uuid.NewString()
	start := time.Now()
	slog.Info("Submitting image for analysis",
		"request_id", requestID, "filename", handle.Filename(), "size_bytes", handle.Size())

	result, err := o.submitter.Analyze(ctx, handle, o.cfg.APIKey)
	if err != nil {
		slog.Error("Analysis submission failed",
			"request_id", requestID, "duration_ms", time.Since(start).Milliseconds(), "err", err)
		return nil, err
	}

	slog.Info("Analysis complete",
		"request_id", requestID, "duration_ms", time.Since(start).Milliseconds(),
		"products_detected", result.ProductsDetected)
	return result, nil
}
