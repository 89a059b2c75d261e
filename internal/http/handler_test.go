package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/models"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/paystack"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/recon"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu           sync.Mutex
	openResult   *recon.OpenResult
	openErr      error
	lastOpen     *recon.OpenRequest
	confirmed    chan string
	confirmRes   *recon.ConfirmResult
	confirmErr   error
	statusRes    *recon.StatusResult
	cancelErr    error
	confirmCalls int
}

func (f *fakeEngine) OpenPending(_ context.Context, req recon.OpenRequest) (*recon.OpenResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpen = &req
	return f.openResult, f.openErr
}

func (f *fakeEngine) Confirm(_ context.Context, reference string, _ recon.Source) (*recon.ConfirmResult, error) {
	f.mu.Lock()
	f.confirmCalls++
	f.mu.Unlock()
	if f.confirmed != nil {
		f.confirmed <- reference
	}
	return f.confirmRes, f.confirmErr
}

func (f *fakeEngine) CheckStatus(_ context.Context, _ string) (*recon.StatusResult, error) {
	return f.statusRes, nil
}

func (f *fakeEngine) CancelPending(_ context.Context, _, _ string) error {
	return f.cancelErr
}

func (f *fakeEngine) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmCalls
}

type fakeOrders struct {
	order *models.Order
	err   error
}

func (f *fakeOrders) GetOrder(context.Context, string, string) (*models.Order, error) {
	return f.order, f.err
}
func (f *fakeOrders) ListOrders(context.Context, string) ([]*models.Order, error) {
	return []*models.Order{f.order}, f.err
}
func (f *fakeOrders) CancelOrder(context.Context, string, string, string) (*models.Order, error) {
	return f.order, f.err
}
func (f *fakeOrders) UpdateStatus(context.Context, string, models.OrderStatus, string) (*models.Order, error) {
	return f.order, f.err
}

const testSecret = "sk_test_secret"

func newTestServer(t *testing.T, eng *fakeEngine, orders *fakeOrders) *Server {
	t.Helper()
	gw, err := paystack.New("https://api.paystack.co", testSecret, 0)
	require.NoError(t, err)
	if orders == nil {
		orders = &fakeOrders{}
	}
	return NewServer(NewHandler(eng, orders, gw, "admin-token"))
}

func sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCheckoutRequiresIdentity(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"cartItems":[{"productId":"p1","quantity":2}]}`))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutIgnoresClientTotals(t *testing.T) {
	eng := &fakeEngine{openResult: &recon.OpenResult{
		PendingOrderID:   "po-1",
		PaymentReference: "ref-1",
		AuthorizationURL: "https://checkout.test/ref-1",
		AccessCode:       "ac-1",
		AmountMinor:      2000,
	}}
	srv := newTestServer(t, eng, nil)

	// A forged "total" field is simply not part of the request contract.
	body := `{"cartItems":[{"productId":"p1","quantity":2}],"deliveryAddress":{"street":"1 Oak St","city":"Accra","phone":"0200000000"},"total":"0.01"}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "20.00", resp["amount"])
	assert.Equal(t, "ref-1", resp["paymentReference"])
}

func TestCheckoutGatewayDown(t *testing.T) {
	eng := &fakeEngine{openErr: paystack.ErrGatewayUnavailable}
	srv := newTestServer(t, eng, nil)

	body := `{"cartItems":[{"productId":"p1","quantity":1}],"deliveryAddress":{"street":"1 Oak St","city":"Accra","phone":"0200000000"}}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestVerifyEndpoint(t *testing.T) {
	pdf := "https://cdn.test/invoices/INV-000001.pdf"
	eng := &fakeEngine{confirmRes: &recon.ConfirmResult{
		Outcome: recon.OutcomeCommitted,
		Order: &models.Order{
			ID:            "ord-1",
			OrderNumber:   "GRV-000001",
			InvoiceNumber: "INV-000001",
			InvoicePDFURL: &pdf,
		},
	}}
	srv := newTestServer(t, eng, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders/verify", strings.NewReader(`{"reference":"ref-1"}`))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ord-1", resp["orderId"])
	assert.Equal(t, "GRV-000001", resp["orderNumber"])
	assert.Equal(t, pdf, resp["pdfUrl"])
}

func TestVerifyEndpointPaymentFailed(t *testing.T) {
	eng := &fakeEngine{confirmRes: &recon.ConfirmResult{Outcome: recon.OutcomeFailed, Reason: "failed"}}
	srv := newTestServer(t, eng, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders/verify", strings.NewReader(`{"reference":"ref-1"}`))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	// Provider internals are not leaked.
	assert.Contains(t, rec.Body.String(), "payment verification failed")
}

func TestVerifyEndpointMissingReference(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/orders/verify", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(t, eng, nil)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)

	// No signature.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Signature over a different body.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", sign([]byte(`{"event":"charge.success","data":{"reference":"ref-OTHER"}}`)))
	rec = httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing reached the engine.
	assert.Equal(t, 0, eng.calls())
}

func TestWebhookValidSignatureConfirmsAsync(t *testing.T) {
	eng := &fakeEngine{
		confirmed:  make(chan string, 1),
		confirmRes: &recon.ConfirmResult{Outcome: recon.OutcomeCommitted, Order: &models.Order{ID: "ord-1"}},
	}
	srv := newTestServer(t, eng, nil)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", sign(body))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	// Acknowledged promptly; the confirm happens off the request path.
	assert.Equal(t, http.StatusOK, rec.Code)
	select {
	case ref := <-eng.confirmed:
		assert.Equal(t, "ref-1", ref)
	case <-time.After(2 * time.Second):
		t.Fatal("confirm was not triggered")
	}
}

func TestPaymentStatusPoll(t *testing.T) {
	eng := &fakeEngine{statusRes: &recon.StatusResult{Status: "success", AmountMinor: 2000}}
	srv := newTestServer(t, eng, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders/payment-status?reference=ref-1", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status  string            `json:"status"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "20.00", resp.Details["amount"])
}

func TestCancelPendingConflict(t *testing.T) {
	eng := &fakeEngine{cancelErr: recon.ErrConflict}
	srv := newTestServer(t, eng, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders/pending/po-1/cancel", nil)
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminStatusUpdateAuth(t *testing.T) {
	orders := &fakeOrders{order: &models.Order{ID: "ord-1", Status: models.OrderProcessing}}
	srv := newTestServer(t, &fakeEngine{}, orders)

	body := `{"status":"processing"}`
	req := httptest.NewRequest(http.MethodPatch, "/orders/ord-1/status", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPatch, "/orders/ord-1/status", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer admin-token")
	rec = httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminStatusUpdateIllegalTransition(t *testing.T) {
	orders := &fakeOrders{err: services.ErrIllegalTransition}
	srv := newTestServer(t, &fakeEngine{}, orders)

	req := httptest.NewRequest(http.MethodPatch, "/orders/ord-1/status", strings.NewReader(`{"status":"confirmed"}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
