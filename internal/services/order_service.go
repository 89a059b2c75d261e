package services

import (
	"context"
	"errors"

	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/models"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/store"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrNotOwner          = errors.New("order does not belong to user")
	ErrIllegalTransition = errors.New("illegal order status transition")
)

// OrderStore is the slice of the store the fulfillment lifecycle needs.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, reason *string, refundDue bool) (int64, error)
}

// OrderService handles the fulfillment lifecycle after commit. It never
// touches payment state; cancelling a committed order only flags whether a
// refund is due for the external refund collaborator.
type OrderService struct {
	Store OrderStore
}

func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string) (*models.Order, error) {
	order, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotOwner
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*models.Order, error) {
	return s.Store.ListOrdersByUser(ctx, userID)
}

// CancelOrder cancels a committed order while still confirmed or
// processing. Payment already happened, so a refund event is flagged.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID, reason string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(order.Status, models.OrderCancelled) {
		return nil, ErrIllegalTransition
	}
	updated, err := s.Store.UpdateOrderStatus(ctx, orderID,
		[]models.OrderStatus{models.OrderConfirmed, models.OrderProcessing},
		models.OrderCancelled, &reason, true)
	if err != nil {
		return nil, err
	}
	if updated == 0 {
		return nil, ErrIllegalTransition
	}
	return s.Store.GetOrder(ctx, orderID)
}

// UpdateStatus is the admin fulfillment operation. Forward-only per the
// order state machine; regressions are rejected before touching the store
// and the guarded update closes the concurrent window.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, to models.OrderStatus, reason string) (*models.Order, error) {
	order, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !models.CanTransition(order.Status, to) {
		return nil, ErrIllegalTransition
	}

	var reasonPtr *string
	refundDue := false
	if to == models.OrderCancelled {
		reasonPtr = &reason
		refundDue = true
	}
	updated, err := s.Store.UpdateOrderStatus(ctx, orderID,
		[]models.OrderStatus{order.Status}, to, reasonPtr, refundDue)
	if err != nil {
		return nil, err
	}
	if updated == 0 {
		return nil, ErrIllegalTransition
	}
	return s.Store.GetOrder(ctx, orderID)
}
