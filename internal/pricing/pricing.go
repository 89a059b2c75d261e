package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/models"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrUnknownProduct  = errors.New("unknown or inactive product")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// ProductSource is the slice of the catalog the pricer needs.
type ProductSource interface {
	GetProducts(ctx context.Context, ids []string) (map[string]*models.Product, error)
}

// RequestedItem is what the client sends: product and quantity only. Prices
// come from the catalog; client-supplied totals are never read.
type RequestedItem struct {
	ProductID string
	Quantity  int64
}

type Service struct {
	Products ProductSource
}

// Reprice loads current catalog prices for the requested items and returns
// the frozen cart snapshot plus totals in minor units. Discount and credits
// are clamped so the total never goes negative.
func (s Service) Reprice(ctx context.Context, items []RequestedItem, discountMinor, creditsMinor int64) ([]models.CartItem, models.Totals, error) {
	if len(items) == 0 {
		return nil, models.Totals{}, ErrEmptyCart
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, models.Totals{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, it.ProductID)
		}
		ids = append(ids, it.ProductID)
	}

	products, err := s.Products.GetProducts(ctx, ids)
	if err != nil {
		return nil, models.Totals{}, err
	}

	snapshot := make([]models.CartItem, 0, len(items))
	var subtotal int64
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok || !p.Active {
			return nil, models.Totals{}, fmt.Errorf("%w: %s", ErrUnknownProduct, it.ProductID)
		}
		snapshot = append(snapshot, models.CartItem{
			ProductID:      p.ID,
			Name:           p.Name,
			Quantity:       it.Quantity,
			UnitPriceMinor: p.UnitPriceMinor,
		})
		subtotal += p.UnitPriceMinor * it.Quantity
	}

	if discountMinor < 0 {
		discountMinor = 0
	}
	if creditsMinor < 0 {
		creditsMinor = 0
	}
	total := subtotal - discountMinor - creditsMinor
	if total < 0 {
		total = 0
	}

	return snapshot, models.Totals{
		SubtotalMinor: subtotal,
		DiscountMinor: discountMinor,
		CreditsMinor:  creditsMinor,
		TotalMinor:    total,
	}, nil
}
