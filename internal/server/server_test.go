package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fincommerce/recommender/internal/bus"
	"github.com/fincommerce/recommender/internal/catalog"
	"github.com/fincommerce/recommender/internal/evaluation"
	"github.com/fincommerce/recommender/internal/metrics"
	"github.com/fincommerce/recommender/internal/pkg/logger"
	"github.com/fincommerce/recommender/internal/profile"
	"github.com/fincommerce/recommender/internal/recommend"
)

// stubSupplier serves a fixed candidate set.
type stubSupplier struct {
	candidates []recommend.Candidate
	err        error
}

func (s *stubSupplier) Retrieve(context.Context, recommend.QueryContext, int) (recommend.Retrieval, error) {
	if s.err != nil {
		return recommend.Retrieval{}, s.err
	}
	return recommend.Retrieval{Candidates: s.candidates, Hybrid: true}, nil
}

func testCandidates() []recommend.Candidate {
	return []recommend.Candidate{
		{ID: "p1", RelevanceScore: 0.9, Price: 30, Category: "bags", Available: true, Rating: 4.5, ReviewCount: 100},
		{ID: "p2", RelevanceScore: 0.8, Price: 60, Category: "shoes", Available: true, Rating: 4.0, ReviewCount: 50},
		{ID: "p3", RelevanceScore: 0.7, Price: 90, Category: "bags", Available: true, Rating: 3.5, ReviewCount: 10},
	}
}

func seedCatalog(t *testing.T, svc *catalog.Service) {
	t.Helper()
	ctx := context.Background()
	for _, p := range []catalog.Product{
		{ID: "p1", Title: "Canvas Tote", Price: 30, Category: "bags", Available: true},
		{ID: "p2", Title: "Trail Runner", Price: 60, Category: "shoes", Available: true},
		{ID: "p3", Title: "Leather Satchel", Price: 90, Category: "bags", Available: true},
	} {
		p := p
		if err := svc.Create(ctx, &p); err != nil {
			t.Fatalf("seeding catalog: %v", err)
		}
	}
}

// newTestServer builds a full server over in-memory backends.
func newTestServer(t *testing.T, supplier recommend.Supplier) (*Server, http.Handler) {
	t.Helper()
	log := logger.New("error", "text")

	catalogSvc := catalog.NewService(catalog.NewMemoryStorage(), nil, nil, log)
	seedCatalog(t, catalogSvc)

	pipeline := recommend.NewPipeline(supplier, catalogSvc, recommend.DefaultConfig(), log)
	profileSvc := profile.NewService(profile.NewMemoryStorage())
	memBus := bus.NewMemoryBus()
	m := metrics.New()

	cfg := DefaultConfig()
	cfg.Version = "test"

	s, err := New(cfg, Deps{
		Bus:       memBus,
		Pipeline:  pipeline,
		Catalog:   catalogSvc,
		Profiles:  profileSvc,
		Evaluator: evaluation.NewEvaluator(pipeline),
		Feedback:  evaluation.NewFeedbackTracker(m, log),
		Metrics:   m,
	}, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return s, s.setupRoutes()
}

func TestRecommendEndToEnd(t *testing.T) {
	_, handler := newTestServer(t, &stubSupplier{candidates: testCandidates()})

	body := `{"query":"bag","top_k":2}`
	req := httptest.NewRequest(http.MethodPost, "/v1/recommend", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	var result recommend.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(result.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(result.Recommendations))
	}
	if result.Recommendations[0].Title == "" {
		t.Error("recommendations not resolved against catalog")
	}
	if result.Degraded {
		t.Error("Degraded = true for healthy supplier")
	}
}

func TestRecommendSearchAlias(t *testing.T) {
	_, handler := newTestServer(t, &stubSupplier{candidates: testCandidates()})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"bag"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRecommendValidation(t *testing.T) {
	_, handler := newTestServer(t, &stubSupplier{candidates: testCandidates()})

	tests := []struct {
		name string
		body string
	}{
		{"missing query", `{"top_k":5}`},
		{"blank query", `{"query":"  "}`},
		{"negative top_k", `{"query":"bag","top_k":-1}`},
		{"malformed json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/recommend", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRecommendDegradedSupplier(t *testing.T) {
	_, handler := newTestServer(t, &stubSupplier{err: context.DeadlineExceeded})

	req := httptest.NewRequest(http.MethodPost, "/v1/recommend", strings.NewReader(`{"query":"bag"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (degraded is not an error)", rec.Code)
	}

	var result recommend.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !result.Degraded {
		t.Error("Degraded = false, want true when supplier is unreachable")
	}
	if len(result.Recommendations) != 0 {
		t.Errorf("got %d recommendations, want 0", len(result.Recommendations))
	}
}

func TestRecommendUsesProfile(t *testing.T) {
	s, handler := newTestServer(t, &stubSupplier{candidates: testCandidates()})

	// Stored profile restricts to the shoes category.
	err := s.deps.Profiles.Save(context.Background(), &profile.Profile{
		UserID:              "u1",
		PreferredCategories: []string{"shoes"},
	})
	if err != nil {
		t.Fatalf("saving profile: %v", err)
	}

	body := `{"query":"something","user_id":"u1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/recommend", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var result recommend.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0].ID != "p2" {
		t.Errorf("profile category preference not applied: %+v", result.Recommendations)
	}
	if !result.Applied.Category {
		t.Error("personalization_applied.category = false, want true")
	}
}

func TestProductCRUD(t *testing.T) {
	_, handler := newTestServer(t, &stubSupplier{candidates: testCandidates()})

	// Create.
	body := `{"id":"p9","title":"Wool Scarf","price":25,"category":"accessories","available":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/products", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Duplicate create conflicts.
	req = httptest.NewRequest(http.MethodPost, "/v1/products", strings.NewReader(body))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", rec.Code)
	}

	// Get.
	req = httptest.NewRequest(http.MethodGet, "/v1/products/p9", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var p catalog.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decoding product: %v", err)
	}
	if p.Title != "Wool Scarf" {
		t.Errorf("title = %q", p.Title)
	}

	// Update.
	req = httptest.NewRequest(http.MethodPut, "/v1/products/p9", strings.NewReader(`{"title":"Wool Scarf XL","price":29,"category":"accessories","available":true}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Delete.
	req = httptest.NewRequest(http.MethodDelete, "/v1/products/p9", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	// Get after delete is 404.
	req = httptest.NewRequest(http.MethodGet, "/v1/products/p9", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestProfileRoutes(t *testing.T) {
	_, handler := newTestServer(t, &stubSupplier{candidates: testCandidates()})

	// Put.
	body := `{"budget_max":100,"preferred_categories":["bags"]}`
	req := httptest.NewRequest(http.MethodPut, "/v1/profiles/u1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Get.
	req = httptest.NewRequest(http.MethodGet, "/v1/profiles/u1", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	// Unknown profile is 404.
	req = httptest.NewRequest(http.MethodGet, "/v1/profiles/nobody", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown profile status = %d, want 404", rec.Code)
	}

	// Delete.
	req = httptest.NewRequest(http.MethodDelete, "/v1/profiles/u1", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
}

func TestFeedbackRoutes(t *testing.T) {
	s, handler := newTestServer(t, &stubSupplier{candidates: testCandidates()})

	if err := s.deps.Feedback.Attach(context.Background(), s.deps.Bus); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/feedback/impression",
		strings.NewReader(`{"request_id":"r1","product_ids":["p1","p2"]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("impression status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/feedback/click",
		strings.NewReader(`{"request_id":"r1","product_id":"p1"}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("click status = %d", rec.Code)
	}

	// Missing product_id rejected.
	req = httptest.NewRequest(http.MethodPost, "/v1/feedback/click", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty click status = %d, want 400", rec.Code)
	}

	if mb, ok := s.deps.Bus.(*bus.MemoryBus); ok {
		if !mb.DrainTimeout(2 * time.Second) {
			t.Fatal("bus did not drain")
		}
	}
	engagement := s.deps.Feedback.Engagement()
	if engagement.Impressions != 1 || engagement.Clicks != 1 {
		t.Errorf("engagement = %+v", engagement)
	}
}

func TestHealthRoutes(t *testing.T) {
	_, handler := newTestServer(t, &stubSupplier{candidates: testCandidates()})

	for _, path := range []string{"/healthz", "/readyz", "/v1/health", "/v1/version"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	_, handler := newTestServer(t, &stubSupplier{candidates: testCandidates()})

	// Serve one recommendation so counters move.
	req := httptest.NewRequest(http.MethodPost, "/v1/recommend", strings.NewReader(`{"query":"bag"}`))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fc_reco_requests_total 1") {
		t.Error("metrics output missing recommendation counter")
	}
}

func TestCORSPreflight(t *testing.T) {
	_, handler := newTestServer(t, &stubSupplier{candidates: testCandidates()})

	req := httptest.NewRequest(http.MethodOptions, "/v1/recommend", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS headers on preflight")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	s, _ := newTestServer(t, &stubSupplier{candidates: testCandidates()})

	panicking := s.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/products", nil)
	rec := httptest.NewRecorder()
	panicking.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestServedEventPublished(t *testing.T) {
	s, handler := newTestServer(t, &stubSupplier{candidates: testCandidates()})

	var got []bus.Event
	done := make(chan struct{}, 1)
	s.deps.Bus.Subscribe(context.Background(), bus.TopicRecoServed, func(_ context.Context, e bus.Event) error {
		got = append(got, e)
		done <- struct{}{}
		return nil
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/recommend", strings.NewReader(`{"query":"bag"}`))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("no reco.served event")
	}
	if len(got) != 1 || got[0].Type != bus.TopicRecoServed {
		t.Errorf("events = %+v", got)
	}
}
