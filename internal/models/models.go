package models

import "time"

type PaymentStatus string

const (
	PaymentInitialized PaymentStatus = "initialized"
	PaymentSuccess     PaymentStatus = "success"
	PaymentFailed      PaymentStatus = "failed"
	PaymentCancelled   PaymentStatus = "cancelled"
	PaymentExpired     PaymentStatus = "expired"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// CanTransition reports whether a fulfillment status change is allowed.
// Forward-only: confirmed -> processing -> delivered; cancelled is reachable
// from confirmed or processing, never from delivered.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderPending:
		return to == OrderConfirmed || to == OrderCancelled
	case OrderConfirmed:
		return to == OrderProcessing || to == OrderCancelled
	case OrderProcessing:
		return to == OrderDelivered || to == OrderCancelled
	default:
		return false
	}
}

type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	Phone  string `json:"phone"`
}

func (a Address) Complete() bool {
	return a.Street != "" && a.City != "" && a.Phone != ""
}

// CartItem is a price-locked line of a cart snapshot. UnitPriceMinor is the
// catalog price at checkout time in minor currency units.
type CartItem struct {
	ProductID      string `json:"productId"`
	Name           string `json:"name"`
	Quantity       int64  `json:"quantity"`
	UnitPriceMinor int64  `json:"unitPriceMinor"`
}

type PendingOrder struct {
	ID               string
	UserID           string
	PaymentReference string
	Items            []CartItem
	Address          Address
	DiscountMinor    int64
	CreditsMinor     int64
	DeliveryNotes    string
	AmountMinor      int64
	Status           PaymentStatus
	ExpiresAt        time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Totals struct {
	SubtotalMinor int64 `json:"subtotalMinor"`
	DiscountMinor int64 `json:"discountMinor"`
	CreditsMinor  int64 `json:"creditsMinor"`
	TotalMinor    int64 `json:"totalMinor"`
}

type Order struct {
	ID               string
	OrderNumber      string
	UserID           string
	PaymentReference string
	Items            []CartItem
	Address          Address
	Totals           Totals
	Status           OrderStatus
	DeliveryNotes    string
	InvoiceNumber    string
	InvoicePDFURL    *string
	InvoiceImageURL  *string
	CancelReason     *string
	RefundDue        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type TransactionStatus string

const (
	TxPending TransactionStatus = "pending"
	TxSuccess TransactionStatus = "success"
	TxFailed  TransactionStatus = "failed"
)

// PaymentTransaction is the audit record for a provider reference. It is
// never the source of truth for whether an order exists.
type PaymentTransaction struct {
	Reference  string
	Status     TransactionStatus
	PaidAt     *time.Time
	RawPayload string
	Flag       *string
	UpdatedAt  time.Time
}

type Product struct {
	ID             string
	Name           string
	UnitPriceMinor int64
	Stock          int64
	Active         bool
}

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxClaimed OutboxStatus = "claimed"
	OutboxDone    OutboxStatus = "done"
	OutboxFailed  OutboxStatus = "failed"
)

type OutboxKind string

const (
	OutboxInvoice OutboxKind = "invoice"
	OutboxNotify  OutboxKind = "notify"
)

// OutboxEntry is a side-effect job enqueued in the same transaction that
// commits an order.
type OutboxEntry struct {
	ID        int64
	OrderID   string
	Kind      OutboxKind
	Status    OutboxStatus
	Attempts  int
	LastError *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
