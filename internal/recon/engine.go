package recon

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/models"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/paystack"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/pricing"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/store"

	"github.com/google/uuid"
)

var (
	ErrMissingUser       = errors.New("missing user id")
	ErrIncompleteAddress = errors.New("delivery address incomplete")
	ErrNotFound          = errors.New("payment reference not found")
	ErrNotOwner          = errors.New("order does not belong to user")
	ErrConflict          = errors.New("pending order is no longer cancellable")
)

// Source identifies which confirmation channel triggered Confirm. Both
// channels run the same path; the source is recorded for the audit trail.
type Source string

const (
	SourceVerify  Source = "verify"
	SourceWebhook Source = "webhook"
)

// Gateway is the slice of the payment provider the engine needs.
type Gateway interface {
	Initialize(ctx context.Context, email string, amountMinor int64, reference, callbackURL string, metadata map[string]string) (*paystack.InitResult, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResult, error)
}

// Store is the persistence surface the engine drives. *store.Store
// satisfies it; tests use fakes.
type Store interface {
	CreatePendingOrder(ctx context.Context, p *models.PendingOrder) error
	GetPendingOrder(ctx context.Context, id string) (*models.PendingOrder, error)
	GetPendingByReference(ctx context.Context, reference string) (*models.PendingOrder, error)
	UpdatePendingStatus(ctx context.Context, id string, from []models.PaymentStatus, to models.PaymentStatus) (int64, error)
	CommitOrder(ctx context.Context, order *models.Order, tx *models.PaymentTransaction) (*models.Order, bool, error)
	GetOrderByReference(ctx context.Context, reference string) (*models.Order, error)
	UpsertTransaction(ctx context.Context, tx *models.PaymentTransaction) error
	NextOrderNumber(ctx context.Context) (string, error)
	NextInvoiceNumber(ctx context.Context) (string, error)
}

type Pricer interface {
	Reprice(ctx context.Context, items []pricing.RequestedItem, discountMinor, creditsMinor int64) ([]models.CartItem, models.Totals, error)
}

type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeFailed    Outcome = "failed"
)

// ConfirmResult is a value, not an error: a declined payment is a routine
// business outcome.
type ConfirmResult struct {
	Outcome Outcome
	Order   *models.Order
	Reason  string
}

type OpenResult struct {
	PendingOrderID   string
	PaymentReference string
	AuthorizationURL string
	AccessCode       string
	AmountMinor      int64
}

type StatusResult struct {
	Status      string
	AmountMinor int64
	PaidAt      *time.Time
}

// Engine owns every mutation of pending orders and the pending-to-order
// commit. No other component writes payment state.
type Engine struct {
	Store       Store
	Gateway     Gateway
	Pricing     Pricer
	TTL         time.Duration
	CallbackURL string
}

type OpenRequest struct {
	UserID        string
	Email         string
	Items         []pricing.RequestedItem
	Address       models.Address
	DiscountMinor int64
	CreditsMinor  int64
	DeliveryNotes string
}

// OpenPending validates and re-prices the cart server-side, records the
// purchase intent, then asks the gateway for an authorization handle. A
// gateway failure marks the intent failed so it never lingers as a phantom.
func (e *Engine) OpenPending(ctx context.Context, req OpenRequest) (*OpenResult, error) {
	if req.UserID == "" {
		return nil, ErrMissingUser
	}
	if !req.Address.Complete() {
		return nil, ErrIncompleteAddress
	}

	snapshot, totals, err := e.Pricing.Reprice(ctx, req.Items, req.DiscountMinor, req.CreditsMinor)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pending := &models.PendingOrder{
		ID:               uuid.NewString(),
		UserID:           req.UserID,
		PaymentReference: uuid.NewString(),
		Items:            snapshot,
		Address:          req.Address,
		DiscountMinor:    totals.DiscountMinor,
		CreditsMinor:     totals.CreditsMinor,
		DeliveryNotes:    req.DeliveryNotes,
		AmountMinor:      totals.TotalMinor,
		Status:           models.PaymentInitialized,
		ExpiresAt:        now.Add(e.TTL),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.Store.CreatePendingOrder(ctx, pending); err != nil {
		return nil, err
	}

	init, err := e.Gateway.Initialize(ctx, req.Email, pending.AmountMinor, pending.PaymentReference, e.CallbackURL, map[string]string{
		"pendingOrderId": pending.ID,
		"userId":         req.UserID,
	})
	if err != nil {
		if _, uerr := e.Store.UpdatePendingStatus(ctx, pending.ID, []models.PaymentStatus{models.PaymentInitialized}, models.PaymentFailed); uerr != nil {
			log.Printf("mark pending failed after init error ref=%s: %v", pending.PaymentReference, uerr)
		}
		return nil, err
	}

	return &OpenResult{
		PendingOrderID:   pending.ID,
		PaymentReference: pending.PaymentReference,
		AuthorizationURL: init.AuthorizationURL,
		AccessCode:       init.AccessCode,
		AmountMinor:      pending.AmountMinor,
	}, nil
}

// Confirm is the single reentrant entry point for both confirmation
// channels. The webhook payload is only a hint to check; the provider's
// verify answer is authoritative. Exactly-once commit is enforced by the
// store's uniqueness constraint on the payment reference, so any number of
// concurrent or retried calls converge on the same order.
func (e *Engine) Confirm(ctx context.Context, reference string, source Source) (*ConfirmResult, error) {
	pending, err := e.Store.GetPendingByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Common case for the second of two racing confirmations.
	if existing, err := e.Store.GetOrderByReference(ctx, reference); err == nil {
		return &ConfirmResult{Outcome: OutcomeCommitted, Order: existing}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if pending.Status == models.PaymentCancelled {
		return &ConfirmResult{Outcome: OutcomeFailed, Reason: "cancelled"}, nil
	}

	vr, err := e.Gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}

	if vr.Status != paystack.VerifySuccess {
		return e.recordFailure(ctx, pending, vr, string(vr.Status), nil)
	}

	if vr.AmountMinor != pending.AmountMinor {
		// Never accept a mismatched amount silently; park it for review.
		flag := "amount_mismatch"
		log.Printf("confirm ref=%s source=%s amount mismatch got=%d want=%d", reference, source, vr.AmountMinor, pending.AmountMinor)
		return e.recordFailure(ctx, pending, vr, "amount mismatch", &flag)
	}

	return e.commit(ctx, pending, vr, source)
}

func (e *Engine) recordFailure(ctx context.Context, pending *models.PendingOrder, vr *paystack.VerifyResult, reason string, flag *string) (*ConfirmResult, error) {
	if _, err := e.Store.UpdatePendingStatus(ctx, pending.ID,
		[]models.PaymentStatus{models.PaymentInitialized, models.PaymentExpired, models.PaymentFailed},
		models.PaymentFailed); err != nil {
		return nil, err
	}
	if err := e.Store.UpsertTransaction(ctx, &models.PaymentTransaction{
		Reference:  pending.PaymentReference,
		Status:     models.TxFailed,
		RawPayload: vr.Raw,
		Flag:       flag,
	}); err != nil {
		return nil, err
	}
	return &ConfirmResult{Outcome: OutcomeFailed, Reason: reason}, nil
}

func (e *Engine) commit(ctx context.Context, pending *models.PendingOrder, vr *paystack.VerifyResult, source Source) (*ConfirmResult, error) {
	orderNumber, err := e.Store.NextOrderNumber(ctx)
	if err != nil {
		return nil, err
	}
	invoiceNumber, err := e.Store.NextInvoiceNumber(ctx)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:               uuid.NewString(),
		OrderNumber:      orderNumber,
		UserID:           pending.UserID,
		PaymentReference: pending.PaymentReference,
		Items:            pending.Items,
		Address:          pending.Address,
		Totals: models.Totals{
			SubtotalMinor: subtotal(pending.Items),
			DiscountMinor: pending.DiscountMinor,
			CreditsMinor:  pending.CreditsMinor,
			TotalMinor:    pending.AmountMinor,
		},
		Status:        models.OrderConfirmed,
		DeliveryNotes: pending.DeliveryNotes,
		InvoiceNumber: invoiceNumber,
	}
	audit := &models.PaymentTransaction{
		Reference:  pending.PaymentReference,
		Status:     models.TxSuccess,
		PaidAt:     vr.PaidAt,
		RawPayload: vr.Raw,
	}

	committed, won, err := e.Store.CommitOrder(ctx, order, audit)
	if err != nil {
		return nil, err
	}
	if won {
		log.Printf("order committed ref=%s source=%s order=%s number=%s", pending.PaymentReference, source, committed.ID, committed.OrderNumber)
	}
	return &ConfirmResult{Outcome: OutcomeCommitted, Order: committed}, nil
}

// CheckStatus reads the provider's current view for display. No mutation.
func (e *Engine) CheckStatus(ctx context.Context, reference string) (*StatusResult, error) {
	if _, err := e.Store.GetPendingByReference(ctx, reference); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	vr, err := e.Gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		Status:      string(vr.Status),
		AmountMinor: vr.AmountMinor,
		PaidAt:      vr.PaidAt,
	}, nil
}

// CancelPending withdraws an intent that has not been paid. Only allowed
// while still initialized; a reference is never re-openable once cancelled.
func (e *Engine) CancelPending(ctx context.Context, pendingOrderID, userID string) error {
	pending, err := e.Store.GetPendingOrder(ctx, pendingOrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if pending.UserID != userID {
		return ErrNotOwner
	}
	if pending.Status != models.PaymentInitialized {
		return ErrConflict
	}
	updated, err := e.Store.UpdatePendingStatus(ctx, pendingOrderID,
		[]models.PaymentStatus{models.PaymentInitialized}, models.PaymentCancelled)
	if err != nil {
		return err
	}
	if updated == 0 {
		// Raced with a confirmation or the expiry sweep.
		return ErrConflict
	}
	return nil
}

func subtotal(items []models.CartItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.UnitPriceMinor * it.Quantity
	}
	return sum
}
