package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/makeuplens/makeuplens/internal/analysis"
	"github.com/makeuplens/makeuplens/internal/intake"
	"github.com/makeuplens/makeuplens/internal/models"
	"github.com/makeuplens/makeuplens/internal/portfolio"
)

// State is the single UI-visible workflow status. Exactly one is active at a
// time and only the Controller mutates it.
type State int

const (
	Idle State = iota
	ImageSelected
	Analyzing
	Analyzed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ImageSelected:
		return "selected"
	case Analyzing:
		return "analyzing"
	case Analyzed:
		return "analyzed"
	case Failed:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrResultDiscarded reports that an analysis response arrived after the
// workflow it belonged to was reset or re-seeded with a new image. The
// response is dropped instead of being applied to an unrelated workflow.
var ErrResultDiscarded = errors.New("analysis result discarded: workflow was reset")

// Analyzer is the analysis half of the controller, satisfied by
// analysis.Orchestrator.
type Analyzer interface {
	Analyze(ctx context.Context, handle *intake.PreviewHandle) (*models.AnalysisResult, error)
}

// Controller binds intake, analysis, and the portfolio mirror behind one
// state machine. All client-held mutable state (selected image, result,
// last error) lives here as a single owned value; endpoint failures land the
// machine in a stable state, never a crash.
type Controller struct {
	analyzer  Analyzer
	portfolio *portfolio.Synchronizer

	mu         sync.Mutex
	state      State
	handle     *intake.PreviewHandle
	result     *models.AnalysisResult
	lastErr    error
	generation uint64
}

// New creates a controller in the Idle state.
func New(analyzer Analyzer, sync *portfolio.Synchronizer) *Controller {
	return &Controller{
		analyzer:  analyzer,
		portfolio: sync,
		state:     Idle,
	}
}

// State returns the current workflow state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Handle returns the currently selected image, or nil.
func (c *Controller) Handle() *intake.PreviewHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// Result returns a snapshot of the last analysis result, or nil. The
// snapshot is a deep copy; later transitions cannot mutate it.
func (c *Controller) Result() *models.AnalysisResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result.Clone()
}

// Err returns the last surfaced error, or nil.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Portfolio exposes the portfolio mirror owned by this workflow instance.
func (c *Controller) Portfolio() *portfolio.Synchronizer {
	return c.portfolio
}

// SelectImage validates and installs a new image. Selecting an image clears
// any previous result and error; a failed selection surfaces the error and
// leaves the state unchanged. Selection is rejected while an analysis is
// outstanding.
func (c *Controller) SelectImage(raw []byte, filename string) error {
	c.mu.Lock()
	if c.state == Analyzing {
		c.mu.Unlock()
		return analysis.ErrAlreadyInProgress
	}
	c.mu.Unlock()

	handle, err := intake.SelectImage(raw, filename)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.handle = handle
	c.result = nil
	c.lastErr = nil
	c.state = ImageSelected
	c.generation++
	c.mu.Unlock()
	return nil
}

// Analyze submits the selected image and drives the state machine through
// Analyzing to Analyzed or Failed. A second call while Analyzing is rejected
// with ErrAlreadyInProgress and issues no submission. Failed retains the
// image so the user can retry without re-selecting.
func (c *Controller) Analyze(ctx context.Context) (*models.AnalysisResult, error) {
	c.mu.Lock()
	if c.state == Analyzing {
		c.mu.Unlock()
		return nil, analysis.ErrAlreadyInProgress
	}
	if c.handle == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: no image selected", intake.ErrInvalidInput)
	}
	handle := c.handle
	gen := c.generation
	c.state = Analyzing
	c.mu.Unlock()

	result, err := c.analyzer.Analyze(ctx, handle)

	c.mu.Lock()
	defer c.mu.Unlock()

	// The workflow was reset or re-seeded while the request was outstanding;
	// this response belongs to a workflow instance that no longer exists.
	if c.generation != gen {
		slog.Info("Discarding stale analysis response", "generation", gen, "current", c.generation)
		return nil, ErrResultDiscarded
	}

	if err != nil {
		// Validation rejections never left the client; they do not demote
		// the workflow to Failed.
		if errors.Is(err, analysis.ErrMissingCredential) || errors.Is(err, intake.ErrInvalidInput) {
			c.state = ImageSelected
			c.lastErr = err
			return nil, err
		}
		c.state = Failed
		c.lastErr = err
		return nil, err
	}

	c.state = Analyzed
	c.result = result
	c.lastErr = nil
	return result.Clone(), nil
}

// Reset releases the selected image and result and restores Idle. An
// analysis still outstanding will find its generation stale and discard its
// response instead of applying it.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = nil
	c.result = nil
	c.lastErr = nil
	c.state = Idle
	c.generation++
}
