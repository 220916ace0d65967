package catalog

import (
	"context"
	"testing"

	"github.com/fincommerce/recommender/internal/pkg/errors"
	"github.com/fincommerce/recommender/internal/pkg/logger"
)

func testService() *Service {
	return NewService(NewMemoryStorage(), nil, nil, logger.New("error", "text"))
}

func validProduct(id string) *Product {
	return &Product{
		ID:             id,
		Title:          "Wool Socks",
		Description:    "Warm merino socks",
		Price:          12.5,
		Category:       "clothing",
		Brand:          "acme",
		Material:       "wool",
		Available:      true,
		PaymentMethods: []string{"card", "paypal"},
		Rating:         Rating{Rate: 4.4, Count: 120},
	}
}

func TestProductValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Product)
		wantErr bool
	}{
		{"valid", func(p *Product) {}, false},
		{"missing id", func(p *Product) { p.ID = " " }, true},
		{"missing title", func(p *Product) { p.Title = "" }, true},
		{"negative price", func(p *Product) { p.Price = -1 }, true},
		{"rating too high", func(p *Product) { p.Rating.Rate = 5.5 }, true},
		{"negative review count", func(p *Product) { p.Rating.Count = -1 }, true},
		{"zero rating ok", func(p *Product) { p.Rating = Rating{} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProduct("p-1")
			tt.mutate(p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSearchText(t *testing.T) {
	p := validProduct("p-1")
	got := p.SearchText()
	want := "Wool Socks. Warm merino socks. clothing. acme. wool"
	if got != want {
		t.Errorf("SearchText() = %q, want %q", got, want)
	}

	sparse := &Product{ID: "p-2", Title: "Mug", Price: 5}
	if got := sparse.SearchText(); got != "Mug" {
		t.Errorf("SearchText() = %q, want Mug", got)
	}
}

func TestServiceCreateAndGet(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	if err := svc.Create(ctx, validProduct("p-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := svc.Get(ctx, "p-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "Wool Socks" {
		t.Errorf("Title = %q, want Wool Socks", got.Title)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set on create")
	}
}

func TestServiceCreateDuplicate(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	if err := svc.Create(ctx, validProduct("p-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := svc.Create(ctx, validProduct("p-1"))
	if err == nil {
		t.Fatal("Create() duplicate: expected error")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.Code != errors.CodeAlreadyExists {
		t.Errorf("error = %v, want CodeAlreadyExists", err)
	}
}

func TestServiceUpdate(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	if err := svc.Create(ctx, validProduct("p-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	created, _ := svc.Get(ctx, "p-1")

	updated := validProduct("p-1")
	updated.Price = 20
	if err := svc.Update(ctx, updated); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := svc.Get(ctx, "p-1")
	if got.Price != 20 {
		t.Errorf("Price = %v, want 20", got.Price)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Error("Update changed CreatedAt")
	}

	if err := svc.Update(ctx, validProduct("missing")); !errors.IsNotFound(err) {
		t.Errorf("Update() unknown id error = %v, want not found", err)
	}
}

func TestServiceDelete(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	if err := svc.Create(ctx, validProduct("p-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Delete(ctx, "p-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := svc.Get(ctx, "p-1"); !errors.IsNotFound(err) {
		t.Errorf("Get() after delete error = %v, want not found", err)
	}
	if err := svc.Delete(ctx, "p-1"); !errors.IsNotFound(err) {
		t.Errorf("Delete() again error = %v, want not found", err)
	}
}

func TestServiceResolve(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	if err := svc.Create(ctx, validProduct("p-1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rec, err := svc.Resolve(ctx, "p-1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if rec == nil {
		t.Fatal("Resolve() = nil for a stored product")
	}
	if rec.Title != "Wool Socks" || rec.Rating != 4.4 || rec.ReviewCount != 120 {
		t.Errorf("resolved record = %+v", rec)
	}

	// Unknown IDs resolve to (nil, nil) so the assembler skips them.
	rec, err = svc.Resolve(ctx, "unknown")
	if err != nil || rec != nil {
		t.Errorf("Resolve(unknown) = (%v, %v), want (nil, nil)", rec, err)
	}
}

func TestMemoryStorageIsolation(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	p := validProduct("p-1")
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	p.Title = "mutated after save"

	got, _ := store.Load(ctx, "p-1")
	if got.Title != "Wool Socks" {
		t.Error("storage shares memory with caller")
	}

	got.Title = "mutated after load"
	again, _ := store.Load(ctx, "p-1")
	if again.Title != "Wool Socks" {
		t.Error("loads share memory between callers")
	}
}

func TestProductKey(t *testing.T) {
	if got := productKey("p-9"); got != "fincommerce:product:p-9" {
		t.Errorf("productKey = %q", got)
	}
}
