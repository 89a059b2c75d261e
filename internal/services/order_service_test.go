package services

import (
	"context"
	"sync"
	"testing"

	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/models"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newFakeOrderStore(orders ...*models.Order) *fakeOrderStore {
	f := &fakeOrderStore{orders: map[string]*models.Order{}}
	for _, o := range orders {
		cp := *o
		f.orders[o.ID] = &cp
	}
	return f
}

func (f *fakeOrderStore) GetOrder(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) ListOrdersByUser(_ context.Context, userID string) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) UpdateOrderStatus(_ context.Context, id string, from []models.OrderStatus, to models.OrderStatus, reason *string, refundDue bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return 0, nil
	}
	for _, s := range from {
		if o.Status == s {
			o.Status = to
			if reason != nil {
				o.CancelReason = reason
			}
			o.RefundDue = o.RefundDue || refundDue
			return 1, nil
		}
	}
	return 0, nil
}

func confirmedOrder() *models.Order {
	return &models.Order{
		ID:          "ord-1",
		OrderNumber: "GRV-000001",
		UserID:      "user-1",
		Status:      models.OrderConfirmed,
	}
}

func TestGetOrderOwnership(t *testing.T) {
	svc := &OrderService{Store: newFakeOrderStore(confirmedOrder())}

	order, err := svc.GetOrder(context.Background(), "ord-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "GRV-000001", order.OrderNumber)

	_, err = svc.GetOrder(context.Background(), "ord-1", "user-2")
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.GetOrder(context.Background(), "missing", "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelOrderFlagsRefund(t *testing.T) {
	st := newFakeOrderStore(confirmedOrder())
	svc := &OrderService{Store: st}

	order, err := svc.CancelOrder(context.Background(), "ord-1", "user-1", "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, order.Status)
	assert.True(t, order.RefundDue)
	require.NotNil(t, order.CancelReason)
	assert.Equal(t, "changed my mind", *order.CancelReason)
}

func TestCancelDeliveredOrderRejected(t *testing.T) {
	delivered := confirmedOrder()
	delivered.Status = models.OrderDelivered
	svc := &OrderService{Store: newFakeOrderStore(delivered)}

	_, err := svc.CancelOrder(context.Background(), "ord-1", "user-1", "too late")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	st := newFakeOrderStore(confirmedOrder())
	svc := &OrderService{Store: st}

	order, err := svc.UpdateStatus(context.Background(), "ord-1", models.OrderProcessing, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, order.Status)

	order, err = svc.UpdateStatus(context.Background(), "ord-1", models.OrderDelivered, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, order.Status)

	// No regression, no cancel after delivery.
	_, err = svc.UpdateStatus(context.Background(), "ord-1", models.OrderProcessing, "")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	_, err = svc.UpdateStatus(context.Background(), "ord-1", models.OrderCancelled, "x")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}
