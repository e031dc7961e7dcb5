package portfolio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/makeuplens/makeuplens/internal/intake"
	"github.com/makeuplens/makeuplens/internal/models"
)

// fakeService mimics the portfolio half of the analysis service: ids and
// added dates are assigned server-side, deletes of unknown ids succeed.
type fakeService struct {
	mu     sync.Mutex
	nextID int
	items  []models.PortfolioItem

	deleteBarrier chan struct{} // when set, DELETE blocks until closed
}

func newFakeService() *fakeService {
	return &fakeService{nextID: 1}
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/portfolio", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(t, w, map[string]any{
			"success":        true,
			"portfolio":      f.items,
			"total_products": len(f.items),
		})
	})

	mux.HandleFunc("/portfolio/add", func(w http.ResponseWriter, r *http.Request) {
		var product models.Product
		if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		item := models.PortfolioItem{
			Product:   product,
			ID:        f.nextID,
			AddedDate: time.Now().Format("2006-01-02 15:04:05"),
		}
		f.nextID++
		f.items = append(f.items, item)
		f.mu.Unlock()
		writeJSON(t, w, map[string]any{"success": true, "product": item})
	})

	mux.HandleFunc("/portfolio/upload", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		item := models.PortfolioItem{
			Product: models.Product{
				Name:     r.FormValue("product_name"),
				Brand:    r.FormValue("brand"),
				Category: r.FormValue("category"),
			},
			ID:          f.nextID,
			AddedDate:   time.Now().Format("2006-01-02 15:04:05"),
			CustomEntry: true,
		}
		f.nextID++
		f.items = append(f.items, item)
		f.mu.Unlock()
		writeJSON(t, w, map[string]any{
			"success":           true,
			"product":           item,
			"detected_analysis": []models.Product{},
		})
	})

	mux.HandleFunc("/portfolio/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if f.deleteBarrier != nil {
			<-f.deleteBarrier
		}
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/portfolio/"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		kept := f.items[:0]
		for _, item := range f.items {
			if item.ID != id {
				kept = append(kept, item)
			}
		}
		f.items = kept
		f.mu.Unlock()
		writeJSON(t, w, map[string]any{"success": true})
	})

	return mux
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("Failed to encode response: %v", err)
	}
}

func testHandle(t *testing.T) *intake.PreviewHandle {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("Failed to encode test PNG: %v", err)
	}
	handle, err := intake.SelectImage(buf.Bytes(), "product.png")
	if err != nil {
		t.Fatalf("SelectImage failed: %v", err)
	}
	return handle
}

func TestAddReflectsServerAssignedID(t *testing.T) {
	service := newFakeService()
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	s := NewSynchronizer(server.URL)
	product := models.Product{
		Name:        "Double Wear Stay-in-Place Makeup",
		Brand:       "Estée Lauder",
		Category:    "Base Makeup",
		Ingredients: []string{"Water\\Aqua\\Eau", "Cyclopentasiloxane", "Titanium Dioxide"},
	}

	if err := s.Add(context.Background(), product); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	items := s.Items()
	if len(items) != 1 {
		t.Fatalf("Expected 1 item in mirror, got %d", len(items))
	}

	item := items[0]
	if item.ID == 0 {
		t.Error("Expected server-assigned id, got 0")
	}
	if item.AddedDate == "" {
		t.Error("Expected server-assigned added date")
	}
	if item.Name != product.Name || item.Brand != product.Brand || item.Category != product.Category {
		t.Errorf("Mirror item fields differ from submitted product: %+v", item.Product)
	}
}

func TestAddRoundTripPreservesIngredientOrder(t *testing.T) {
	service := newFakeService()
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	s := NewSynchronizer(server.URL)
	// Order and duplicates are meaningful.
	ingredients := []string{"Mica", "Talc", "Mica", "Candelilla Wax"}
	product := models.Product{Name: "Naked3 Eyeshadow Palette", Brand: "Urban Decay", Category: "Eye Makeup", Ingredients: ingredients}

	if err := s.Add(context.Background(), product); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got := s.Items()[0].Ingredients
	if len(got) != len(ingredients) {
		t.Fatalf("Expected %d ingredients, got %d", len(ingredients), len(got))
	}
	for i, want := range ingredients {
		if got[i] != want {
			t.Errorf("Ingredient %d: expected %s, got %s", i, want, got[i])
		}
	}
}

func TestAddWithImageRequiresName(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	s := NewSynchronizer(server.URL)

	tests := []string{"", "   "}
	for _, name := range tests {
		err := s.AddWithImage(context.Background(), testHandle(t), name, "Dior", "Lip Color")
		if !errors.Is(err, ErrMissingField) {
			t.Errorf("name=%q: expected ErrMissingField, got %v", name, err)
		}
	}

	if requests != 0 {
		t.Errorf("Expected zero requests for invalid input, got %d", requests)
	}
}

func TestAddWithImage(t *testing.T) {
	service := newFakeService()
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	s := NewSynchronizer(server.URL)
	if err := s.AddWithImage(context.Background(), testHandle(t), "My Lipstick", "Dior", "Lip Color"); err != nil {
		t.Fatalf("AddWithImage failed: %v", err)
	}

	items := s.Items()
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if !items[0].CustomEntry {
		t.Error("Expected custom_entry to be set")
	}
	if items[0].Name != "My Lipstick" {
		t.Errorf("Expected name My Lipstick, got %s", items[0].Name)
	}
}

func TestRemove(t *testing.T) {
	service := newFakeService()
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	s := NewSynchronizer(server.URL)
	if err := s.Add(context.Background(), models.Product{Name: "A", Brand: "B", Category: "C"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	id := s.Items()[0].ID

	if err := s.Remove(context.Background(), id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if s.Contains(id) {
		t.Errorf("Mirror still contains removed id %d", id)
	}
}

func TestRemoveUnknownIDIsIdempotent(t *testing.T) {
	service := newFakeService()
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	s := NewSynchronizer(server.URL)
	if err := s.Remove(context.Background(), 999); err != nil {
		t.Errorf("Remove of unknown id should succeed, got %v", err)
	}
}

func TestRemoveToleratesNotFound(t *testing.T) {
	service := newFakeService()
	base := service.handler(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "DELETE" {
			http.NotFound(w, r)
			return
		}
		base.ServeHTTP(w, r)
	}))
	defer server.Close()

	s := NewSynchronizer(server.URL)
	if err := s.Remove(context.Background(), 42); err != nil {
		t.Errorf("Remove reported error despite id absent after reload: %v", err)
	}
}

func TestRemoveSameIDSingleFlight(t *testing.T) {
	service := newFakeService()
	service.deleteBarrier = make(chan struct{})
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	s := NewSynchronizer(server.URL)
	if err := s.Add(context.Background(), models.Product{Name: "A", Brand: "B", Category: "C"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	id := s.Items()[0].ID

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Remove(context.Background(), id)
	}()

	// Wait for the first remove to hold the id's flight slot.
	for s.acquire(id) {
		s.release(id)
		time.Sleep(time.Millisecond)
	}

	if err := s.Remove(context.Background(), id); !errors.Is(err, ErrAlreadyInProgress) {
		t.Errorf("Expected ErrAlreadyInProgress for concurrent remove, got %v", err)
	}

	close(service.deleteBarrier)
	if err := <-firstDone; err != nil {
		t.Fatalf("First remove failed: %v", err)
	}
}

func TestRefreshReplacesMirrorWholesale(t *testing.T) {
	service := newFakeService()
	server := httptest.NewServer(service.handler(t))
	defer server.Close()

	s := NewSynchronizer(server.URL)
	if err := s.Add(context.Background(), models.Product{Name: "A", Brand: "B", Category: "C"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// External mutation the client never saw.
	service.mu.Lock()
	service.items = nil
	service.mu.Unlock()

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(s.Items()) != 0 {
		t.Errorf("Expected empty mirror after external wipe, got %d items", len(s.Items()))
	}
}

func TestRefreshFailureLeavesMirrorUnchanged(t *testing.T) {
	service := newFakeService()
	server := httptest.NewServer(service.handler(t))

	s := NewSynchronizer(server.URL)
	if err := s.Add(context.Background(), models.Product{Name: "A", Brand: "B", Category: "C"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	before := s.Items()

	server.Close()
	err := s.Refresh(context.Background())
	if !errors.Is(err, ErrOperationFailed) {
		t.Errorf("Expected ErrOperationFailed, got %v", err)
	}
	if len(s.Items()) != len(before) {
		t.Error("Mirror changed despite failed refresh")
	}
}
