package metrics

import (
	"encoding/json"
	"net/http"
	"time"
)

// Handler returns an HTTP handler serving the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(m.PrometheusFormat()))
	})
}

// ServeHTTP implements http.Handler.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.Handler().ServeHTTP(w, r)
}

// Snapshot is a JSON view of the headline metrics for dashboards.
type Snapshot struct {
	RecoRequests    int64       `json:"reco_requests"`
	RecoDegraded    int64       `json:"reco_degraded"`
	AvgLatencyMs    float64     `json:"avg_latency_ms"`
	IndexedProducts int64       `json:"indexed_products"`
	Impressions     int64       `json:"impressions"`
	Clicks          int64       `json:"clicks"`
	AddToCarts      int64       `json:"add_to_carts"`
	CTR             float64     `json:"ctr"`
	RecoRate        []DataPoint `json:"reco_rate"`
	RecoLatency     []DataPoint `json:"reco_latency"`
	GeneratedAt     time.Time   `json:"generated_at"`
}

// JSONHandler returns an HTTP handler serving a JSON metrics snapshot.
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		snap := Snapshot{
			RecoRequests:    m.RecoRequests.Value(),
			RecoDegraded:    m.RecoDegraded.Value(),
			IndexedProducts: m.IndexedProducts.Value(),
			Impressions:     m.Impressions.Value(),
			Clicks:          m.Clicks.Value(),
			AddToCarts:      m.AddToCarts.Value(),
			GeneratedAt:     time.Now().UTC(),
		}
		if count := m.RecoLatency.Count(); count > 0 {
			snap.AvgLatencyMs = m.RecoLatency.Sum() / float64(count)
		}
		if snap.Impressions > 0 {
			snap.CTR = float64(snap.Clicks) / float64(snap.Impressions)
		}
		if m.TimeSeries != nil {
			snap.RecoRate = m.TimeSeries.RecoRate.History()
			snap.RecoLatency = m.TimeSeries.RecoLatency.History()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(snap)
	})
}
