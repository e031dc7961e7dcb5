package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/makeuplens/makeuplens/internal/intake"
	"github.com/makeuplens/makeuplens/internal/models"
)

var (
	// ErrMissingField is returned before any request is sent when required
	// fields are blank.
	ErrMissingField = errors.New("missing required field")

	// ErrOperationFailed covers any mutating portfolio call whose outcome
	// the server did not confirm.
	ErrOperationFailed = errors.New("portfolio operation failed")

	// ErrAlreadyInProgress rejects a second mutation for an id whose first
	// mutation has not resolved yet.
	ErrAlreadyInProgress = errors.New("portfolio mutation already in progress for this id")
)

// Store is the wire-level half of the synchronizer, satisfied by Client.
type Store interface {
	LoadAll(ctx context.Context) ([]models.PortfolioItem, error)
	Add(ctx context.Context, product models.Product) error
	Upload(ctx context.Context, handle *intake.PreviewHandle, name, brand, category string) (*models.PortfolioItem, []models.Product, error)
	Remove(ctx context.Context, id int) error
}

// Synchronizer maintains a client-local mirror of the server-held portfolio.
// The mirror is only ever replaced wholesale after a LoadAll; mutations never
// patch it in place, so a concurrent external change is always reflected on
// the next refresh at the cost of discarding optimistic local state.
type Synchronizer struct {
	store Store

	mu     sync.RWMutex
	mirror []models.PortfolioItem

	flightMu sync.Mutex
	inFlight map[int]struct{}
}

// NewSynchronizer creates a synchronizer over the configured endpoint.
func NewSynchronizer(baseURL string) *Synchronizer {
	return NewSynchronizerWithStore(NewClient(baseURL))
}

// NewSynchronizerWithStore injects a store, used by tests.
func NewSynchronizerWithStore(store Store) *Synchronizer {
	return &Synchronizer{
		store:    store,
		inFlight: make(map[int]struct{}),
	}
}

// Items returns a copy of the current mirror in server order.
func (s *Synchronizer) Items() []models.PortfolioItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PortfolioItem(nil), s.mirror...)
}

// Contains reports whether the mirror currently holds the given id.
func (s *Synchronizer) Contains(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.mirror {
		if item.ID == id {
			return true
		}
	}
	return false
}

// Refresh fetches the authoritative collection and replaces the mirror.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	items, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOperationFailed, err)
	}

	s.mu.Lock()
	s.mirror = items
	s.mu.Unlock()

	slog.Info("Portfolio mirror refreshed", "items", len(items))
	return nil
}

// Add persists an analysis-derived product, then refreshes so the mirror
// reflects the server-assigned id and added date rather than guesses.
func (s *Synchronizer) Add(ctx context.Context, product models.Product) error {
	if err := s.store.Add(ctx, product); err != nil {
		return fmt.Errorf("%w: %v", ErrOperationFailed, err)
	}
	return s.Refresh(ctx)
}

// AddWithImage persists an entry with its original photo. Name is required;
// brand and category pass through and the server fills defaults for blanks.
func (s *Synchronizer) AddWithImage(ctx context.Context, handle *intake.PreviewHandle, name, brand, category string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if handle == nil || handle.Size() == 0 {
		return fmt.Errorf("%w: image", ErrMissingField)
	}

	item, detected, err := s.store.Upload(ctx, handle, name, brand, category)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOperationFailed, err)
	}

	// The echo is informational only; the mirror trusts LoadAll.
	slog.Info("Product uploaded to portfolio",
		"id", item.ID, "name", item.Name, "detected_products", len(detected))

	return s.Refresh(ctx)
}

// Remove requests deletion by id and refreshes. The operation is idempotent
// from the caller's perspective: whatever the delete call reported, success
// is the id being absent from the reloaded collection.
func (s *Synchronizer) Remove(ctx context.Context, id int) error {
	if !s.acquire(id) {
		return ErrAlreadyInProgress
	}
	defer s.release(id)

	removeErr := s.store.Remove(ctx, id)
	if err := s.Refresh(ctx); err != nil {
		if removeErr != nil {
			return fmt.Errorf("%w: remove failed (%v) and refresh failed (%v)", ErrOperationFailed, removeErr, err)
		}
		return err
	}

	if s.Contains(id) {
		if removeErr != nil {
			return fmt.Errorf("%w: %v", ErrOperationFailed, removeErr)
		}
		return fmt.Errorf("%w: id %d still present after delete", ErrOperationFailed, id)
	}
	return nil
}

func (s *Synchronizer) acquire(id int) bool {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Synchronizer) release(id int) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	delete(s.inFlight, id)
}
