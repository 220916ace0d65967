package profile

import (
	"context"
	"testing"

	"github.com/fincommerce/recommender/internal/pkg/errors"
	"github.com/fincommerce/recommender/internal/recommend"
)

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{"valid", Profile{UserID: "u1", BudgetMin: 10, BudgetMax: 100}, false},
		{"no budget", Profile{UserID: "u1"}, false},
		{"missing user", Profile{}, true},
		{"negative budget", Profile{UserID: "u1", BudgetMin: -1}, true},
		{"min above max", Profile{UserID: "u1", BudgetMin: 50, BudgetMax: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyToFillsGaps(t *testing.T) {
	p := &Profile{
		UserID:                 "u1",
		BudgetMin:              10,
		BudgetMax:              100,
		PreferredCategories:    []string{"clothing"},
		PreferredBrands:        []string{"acme"},
		PreferredPaymentMethod: "paypal",
	}

	qc := p.ApplyTo(recommend.QueryContext{Query: "socks"})

	if qc.Budget == nil || qc.Budget.Min != 10 || qc.Budget.Max != 100 {
		t.Errorf("Budget = %+v, want {10 100}", qc.Budget)
	}
	if len(qc.Preferences.Categories) != 1 || qc.Preferences.Categories[0] != "clothing" {
		t.Errorf("Categories = %v", qc.Preferences.Categories)
	}
	if qc.PreferredPaymentMethod != "paypal" {
		t.Errorf("PreferredPaymentMethod = %q", qc.PreferredPaymentMethod)
	}
}

func TestApplyToRequestWins(t *testing.T) {
	p := &Profile{
		UserID:                 "u1",
		BudgetMin:              10,
		BudgetMax:              100,
		PreferredCategories:    []string{"clothing"},
		PreferredPaymentMethod: "paypal",
	}

	qc := p.ApplyTo(recommend.QueryContext{
		Query:                  "socks",
		Budget:                 &recommend.Budget{Min: 0, Max: 50},
		Preferences:            recommend.Preferences{Categories: []string{"shoes"}},
		PreferredPaymentMethod: "card",
	})

	if qc.Budget.Max != 50 {
		t.Errorf("Budget.Max = %v, want the request's 50", qc.Budget.Max)
	}
	if qc.Preferences.Categories[0] != "shoes" {
		t.Errorf("Categories = %v, want the request's [shoes]", qc.Preferences.Categories)
	}
	if qc.PreferredPaymentMethod != "card" {
		t.Errorf("PreferredPaymentMethod = %q, want card", qc.PreferredPaymentMethod)
	}
}

func TestServiceSaveAndGet(t *testing.T) {
	svc := NewService(NewMemoryStorage())
	ctx := context.Background()

	if err := svc.Save(ctx, &Profile{UserID: "u1", BudgetMax: 80}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.BudgetMax != 80 {
		t.Errorf("BudgetMax = %v, want 80", got.BudgetMax)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set on save")
	}

	if _, err := svc.Get(ctx, "unknown"); !errors.IsNotFound(err) {
		t.Errorf("Get(unknown) error = %v, want not found", err)
	}
}

func TestServiceEnrich(t *testing.T) {
	svc := NewService(NewMemoryStorage())
	ctx := context.Background()

	if err := svc.Save(ctx, &Profile{UserID: "u1", PreferredBrands: []string{"acme"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	qc := svc.Enrich(ctx, "u1", recommend.QueryContext{Query: "q"})
	if len(qc.Preferences.Brands) != 1 {
		t.Errorf("Brands = %v, want [acme]", qc.Preferences.Brands)
	}

	// Unknown user leaves the context untouched.
	qc = svc.Enrich(ctx, "ghost", recommend.QueryContext{Query: "q"})
	if len(qc.Preferences.Brands) != 0 {
		t.Errorf("Brands = %v, want empty for unknown user", qc.Preferences.Brands)
	}

	// Anonymous requests skip the lookup entirely.
	qc = svc.Enrich(ctx, "", recommend.QueryContext{Query: "q"})
	if qc.Budget != nil {
		t.Error("anonymous enrich changed the context")
	}
}

func TestProfileKey(t *testing.T) {
	if got := profileKey("u-9"); got != "fincommerce:profile:u-9" {
		t.Errorf("profileKey = %q", got)
	}
}
