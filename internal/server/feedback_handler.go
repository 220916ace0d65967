package server

import (
	"encoding/json"
	"net/http"

	"github.com/fincommerce/recommender/internal/bus"
	"github.com/fincommerce/recommender/internal/evaluation"
	"github.com/fincommerce/recommender/internal/pkg/logger"
)

// FeedbackHandler accepts engagement events from storefront clients
// and publishes them on the bus for the evaluation service.
type FeedbackHandler struct {
	events bus.Bus
	log    *logger.Logger
}

// NewFeedbackHandler creates the feedback handler. events may be nil,
// in which case every route answers 503.
func NewFeedbackHandler(events bus.Bus, log *logger.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		events: events,
		log:    log.WithComponent("feedback"),
	}
}

// RegisterRoutes registers feedback routes.
func (h *FeedbackHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/feedback/impression", h.handleImpression)
	mux.HandleFunc("POST /v1/feedback/click", h.handleClick)
	mux.HandleFunc("POST /v1/feedback/add_to_cart", h.handleAddToCart)
}

func (h *FeedbackHandler) handleImpression(w http.ResponseWriter, r *http.Request) {
	var payload evaluation.ImpressionEvent
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(payload.ProductIDs) == 0 {
		writeError(w, http.StatusBadRequest, "product_ids are required")
		return
	}

	h.publish(w, r, bus.TopicImpression, payload)
}

func (h *FeedbackHandler) handleClick(w http.ResponseWriter, r *http.Request) {
	var payload evaluation.ClickEvent
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	h.publish(w, r, bus.TopicClick, payload)
}

func (h *FeedbackHandler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var payload evaluation.AddToCartEvent
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	h.publish(w, r, bus.TopicAddToCart, payload)
}

func (h *FeedbackHandler) publish(w http.ResponseWriter, r *http.Request, topic string, payload any) {
	if h.events == nil {
		writeError(w, http.StatusServiceUnavailable, "feedback collection is not enabled")
		return
	}

	if err := h.events.Publish(r.Context(), topic, bus.NewEvent(topic, "storefront", payload)); err != nil {
		h.log.Warn("failed to publish feedback event", "topic", topic, "error", err)
		writeError(w, http.StatusServiceUnavailable, "feedback bus unavailable")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
