// Package catalog manages full product records: validation, storage,
// and resolution for the ranking pipeline.
package catalog

import (
	"strings"
	"time"

	"github.com/fincommerce/recommender/internal/pkg/errors"
)

// Rating holds the aggregate review signal for a product.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Product is a full catalog record.
type Product struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Price          float64   `json:"price"`
	Category       string    `json:"category"`
	Brand          string    `json:"brand,omitempty"`
	Material       string    `json:"material,omitempty"`
	Image          string    `json:"image,omitempty"`
	Available      bool      `json:"available"`
	PaymentMethods []string  `json:"payment_methods,omitempty"`
	Rating         Rating    `json:"rating"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks the product record for storage.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.ValidationError("product id is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return errors.ValidationError("product title is required")
	}
	if p.Price < 0 {
		return errors.ValidationError("product price must be non-negative")
	}
	if p.Rating.Rate < 0 || p.Rating.Rate > 5 {
		return errors.ValidationError("product rating must be between 0 and 5")
	}
	if p.Rating.Count < 0 {
		return errors.ValidationError("product review count must be non-negative")
	}
	return nil
}

// SearchText builds the text that gets embedded for retrieval: title,
// description and the flat attributes, so attribute words participate
// in both dense and sparse matching.
func (p *Product) SearchText() string {
	parts := make([]string, 0, 5)
	for _, s := range []string{p.Title, p.Description, p.Category, p.Brand, p.Material} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ". ")
}
