package evaluation

import (
	"context"
	"sync"

	"github.com/fincommerce/recommender/internal/bus"
	"github.com/fincommerce/recommender/internal/pkg/logger"
)

// ImpressionEvent is the payload published when recommendations are
// shown to a user.
type ImpressionEvent struct {
	RequestID  string   `json:"request_id"`
	UserID     string   `json:"user_id,omitempty"`
	ProductIDs []string `json:"product_ids"`
}

// ClickEvent is the payload published when a recommended product is
// clicked.
type ClickEvent struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id,omitempty"`
	ProductID string `json:"product_id"`
}

// AddToCartEvent is the payload published when a recommended product is
// added to a cart.
type AddToCartEvent struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id,omitempty"`
	ProductID string `json:"product_id"`
}

// FeedbackMetrics receives online feedback counts. metrics.Metrics
// implements it.
type FeedbackMetrics interface {
	RecordImpression()
	RecordClick()
	RecordAddToCart()
}

// FeedbackTracker consumes feedback topics from the bus and maintains
// online engagement counters.
type FeedbackTracker struct {
	metrics FeedbackMetrics
	log     *logger.Logger

	mu          sync.RWMutex
	impressions int64
	clicks      int64
	addToCarts  int64
}

// NewFeedbackTracker creates a tracker. metrics may be nil; counts are
// still kept locally.
func NewFeedbackTracker(metrics FeedbackMetrics, log *logger.Logger) *FeedbackTracker {
	return &FeedbackTracker{
		metrics: metrics,
		log:     log.WithComponent("feedback"),
	}
}

// Attach subscribes the tracker to the feedback topics.
func (t *FeedbackTracker) Attach(ctx context.Context, b bus.Bus) error {
	if err := b.Subscribe(ctx, bus.TopicImpression, t.onImpression); err != nil {
		return err
	}
	if err := b.Subscribe(ctx, bus.TopicClick, t.onClick); err != nil {
		return err
	}
	return b.Subscribe(ctx, bus.TopicAddToCart, t.onAddToCart)
}

func (t *FeedbackTracker) onImpression(ctx context.Context, event bus.Event) error {
	t.mu.Lock()
	t.impressions++
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordImpression()
	}
	t.log.Debug("impression recorded", "event_id", event.ID)
	return nil
}

func (t *FeedbackTracker) onClick(ctx context.Context, event bus.Event) error {
	t.mu.Lock()
	t.clicks++
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordClick()
	}
	t.log.Debug("click recorded", "event_id", event.ID)
	return nil
}

func (t *FeedbackTracker) onAddToCart(ctx context.Context, event bus.Event) error {
	t.mu.Lock()
	t.addToCarts++
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordAddToCart()
	}
	t.log.Debug("add-to-cart recorded", "event_id", event.ID)
	return nil
}

// EngagementSummary is the online metrics snapshot.
type EngagementSummary struct {
	Impressions   int64   `json:"impressions"`
	Clicks        int64   `json:"clicks"`
	AddToCarts    int64   `json:"add_to_carts"`
	CTR           float64 `json:"ctr"`
	AddToCartRate float64 `json:"add_to_cart_rate"`
}

// Engagement returns the current engagement counters and derived rates.
func (t *FeedbackTracker) Engagement() EngagementSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := EngagementSummary{
		Impressions: t.impressions,
		Clicks:      t.clicks,
		AddToCarts:  t.addToCarts,
	}
	if t.impressions > 0 {
		s.CTR = float64(t.clicks) / float64(t.impressions)
		s.AddToCartRate = float64(t.addToCarts) / float64(t.impressions)
	}
	return s
}
