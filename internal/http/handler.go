package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/models"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/money"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/paystack"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/pricing"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/recon"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// SignatureValidator is the webhook authentication gate.
type SignatureValidator interface {
	ValidateWebhookSignature(rawBody []byte, signature string) bool
}

// Engine is the reconciliation surface the handlers drive.
type Engine interface {
	OpenPending(ctx context.Context, req recon.OpenRequest) (*recon.OpenResult, error)
	Confirm(ctx context.Context, reference string, source recon.Source) (*recon.ConfirmResult, error)
	CheckStatus(ctx context.Context, reference string) (*recon.StatusResult, error)
	CancelPending(ctx context.Context, pendingOrderID, userID string) error
}

// OrderAPI is the post-commit order surface.
type OrderAPI interface {
	GetOrder(ctx context.Context, orderID, userID string) (*models.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*models.Order, error)
	CancelOrder(ctx context.Context, orderID, userID, reason string) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, to models.OrderStatus, reason string) (*models.Order, error)
}

type Handler struct {
	Engine     Engine
	Orders     OrderAPI
	Signatures SignatureValidator
	AdminToken string
}

func NewHandler(engine Engine, orders OrderAPI, signatures SignatureValidator, adminToken string) *Handler {
	return &Handler{Engine: engine, Orders: orders, Signatures: signatures, AdminToken: adminToken}
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

type checkoutRequest struct {
	CartItems       []cartItemRequest `json:"cartItems"`
	DeliveryAddress models.Address    `json:"deliveryAddress"`
	Discount        json.Number       `json:"discount"`
	Credits         json.Number       `json:"credits"`
	DeliveryNotes   string            `json:"deliveryNotes"`
}

type checkoutResponse struct {
	PendingOrderID   string `json:"pendingOrderId"`
	PaymentReference string `json:"paymentReference"`
	AuthorizationURL string `json:"authorizationUrl"`
	AccessCode       string `json:"accessCode"`
	Amount           string `json:"amount"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	discount, ok := parseMajorNumber(req.Discount)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid discount")
		return
	}
	credits, ok := parseMajorNumber(req.Credits)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid credits")
		return
	}

	items := make([]pricing.RequestedItem, 0, len(req.CartItems))
	for _, it := range req.CartItems {
		items = append(items, pricing.RequestedItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	result, err := h.Engine.OpenPending(r.Context(), recon.OpenRequest{
		UserID:        userID,
		Email:         r.Header.Get("X-User-Email"),
		Items:         items,
		Address:       req.DeliveryAddress,
		DiscountMinor: discount,
		CreditsMinor:  credits,
		DeliveryNotes: req.DeliveryNotes,
	})
	if err != nil {
		switch {
		case errors.Is(err, recon.ErrMissingUser):
			writeError(w, http.StatusUnauthorized, "missing user id")
		case errors.Is(err, recon.ErrIncompleteAddress):
			writeError(w, http.StatusBadRequest, "delivery address incomplete")
		case errors.Is(err, pricing.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "cart is empty")
		case errors.Is(err, pricing.ErrUnknownProduct), errors.Is(err, pricing.ErrInvalidQuantity):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, paystack.ErrGatewayUnavailable):
			writeError(w, http.StatusBadGateway, "payment gateway unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "checkout failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		PendingOrderID:   result.PendingOrderID,
		PaymentReference: result.PaymentReference,
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
		Amount:           money.FormatMajor(result.AmountMinor),
	})
}

type verifyRequest struct {
	Reference string `json:"reference"`
}

type verifyResponse struct {
	OrderID       string `json:"orderId"`
	OrderNumber   string `json:"orderNumber"`
	InvoiceNumber string `json:"invoiceNumber"`
	PDFURL        string `json:"pdfUrl,omitempty"`
	ImageURL      string `json:"imageUrl,omitempty"`
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" {
		writeError(w, http.StatusBadRequest, "missing reference")
		return
	}

	result, err := h.Engine.Confirm(r.Context(), req.Reference, recon.SourceVerify)
	if err != nil {
		h.confirmError(w, err)
		return
	}
	if result.Outcome != recon.OutcomeCommitted {
		writeError(w, http.StatusBadRequest, "payment verification failed")
		return
	}

	resp := verifyResponse{
		OrderID:       result.Order.ID,
		OrderNumber:   result.Order.OrderNumber,
		InvoiceNumber: result.Order.InvoiceNumber,
	}
	if result.Order.InvoicePDFURL != nil {
		resp.PDFURL = *result.Order.InvoicePDFURL
	}
	if result.Order.InvoiceImageURL != nil {
		resp.ImageURL = *result.Order.InvoiceImageURL
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		writeError(w, http.StatusBadRequest, "missing reference")
		return
	}

	status, err := h.Engine.CheckStatus(r.Context(), reference)
	if err != nil {
		h.confirmError(w, err)
		return
	}

	details := map[string]any{"amount": money.FormatMajor(status.AmountMinor)}
	if status.PaidAt != nil {
		details["paidAt"] = status.PaidAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status.Status,
		"details": details,
	})
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// Webhook authenticates the raw body before parsing anything, acknowledges
// fast, and confirms asynchronously. The payload is only a hint to check;
// Confirm re-verifies against the provider.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if !h.Signatures.ValidateWebhookSignature(body, r.Header.Get("x-paystack-signature")) {
		log.Printf("webhook rejected: bad signature")
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil || event.Data.Reference == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	go func(reference string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		result, err := h.Engine.Confirm(ctx, reference, recon.SourceWebhook)
		if err != nil {
			log.Printf("webhook confirm ref=%s: %v", reference, err)
			return
		}
		log.Printf("webhook confirm ref=%s outcome=%s", reference, result.Outcome)
	}(event.Data.Reference)

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (h *Handler) CancelPending(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}
	id := chi.URLParam(r, "id")

	err := h.Engine.CancelPending(r.Context(), id, userID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	case errors.Is(err, recon.ErrNotFound):
		writeError(w, http.StatusNotFound, "pending order not found")
	case errors.Is(err, recon.ErrNotOwner):
		writeError(w, http.StatusNotFound, "pending order not found")
	case errors.Is(err, recon.ErrConflict):
		writeError(w, http.StatusConflict, "pending order is no longer cancellable")
	default:
		writeError(w, http.StatusInternalServerError, "cancel failed")
	}
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}
	orders, err := h.Orders.ListOrders(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list orders failed")
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}
	order, err := h.Orders.GetOrder(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.orderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}
	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	order, err := h.Orders.CancelOrder(r.Context(), chi.URLParam(r, "id"), userID, req.Reason)
	if err != nil {
		h.orderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if h.AdminToken == "" || r.Header.Get("Authorization") != "Bearer "+h.AdminToken {
		writeError(w, http.StatusUnauthorized, "admin token required")
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	order, err := h.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), models.OrderStatus(req.Status), req.Reason)
	if err != nil {
		h.orderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) confirmError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recon.ErrNotFound):
		writeError(w, http.StatusNotFound, "reference not found")
	case errors.Is(err, paystack.ErrGatewayUnavailable):
		writeError(w, http.StatusBadGateway, "payment gateway unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "confirmation failed")
	}
}

func (h *Handler) orderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrNotOwner):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, services.ErrIllegalTransition):
		writeError(w, http.StatusBadRequest, "illegal status transition")
	default:
		writeError(w, http.StatusInternalServerError, "order operation failed")
	}
}

type orderItemResponse struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	OrderNumber   string              `json:"orderNumber"`
	Status        string              `json:"status"`
	Items         []orderItemResponse `json:"items"`
	Address       models.Address      `json:"deliveryAddress"`
	Subtotal      string              `json:"subtotal"`
	Discount      string              `json:"discount"`
	Credits       string              `json:"credits"`
	Total         string              `json:"total"`
	InvoiceNumber string              `json:"invoiceNumber"`
	InvoicePDFURL string              `json:"invoicePdfUrl,omitempty"`
	InvoiceImgURL string              `json:"invoiceImageUrl,omitempty"`
	RefundDue     bool                `json:"refundDue,omitempty"`
	CreatedAt     string              `json:"createdAt"`
}

func toOrderResponse(o *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: money.FormatMajor(it.UnitPriceMinor),
		})
	}
	resp := orderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		Items:         items,
		Address:       o.Address,
		Subtotal:      money.FormatMajor(o.Totals.SubtotalMinor),
		Discount:      money.FormatMajor(o.Totals.DiscountMinor),
		Credits:       money.FormatMajor(o.Totals.CreditsMinor),
		Total:         money.FormatMajor(o.Totals.TotalMinor),
		InvoiceNumber: o.InvoiceNumber,
		RefundDue:     o.RefundDue,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
	if o.InvoicePDFURL != nil {
		resp.InvoicePDFURL = *o.InvoicePDFURL
	}
	if o.InvoiceImageURL != nil {
		resp.InvoiceImgURL = *o.InvoiceImageURL
	}
	return resp
}

func parseMajorNumber(n json.Number) (int64, bool) {
	if n == "" {
		return 0, true
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil || d.IsNegative() {
		return 0, false
	}
	return money.ToMinorUnits(d), true
}
