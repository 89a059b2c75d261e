package recon

import (
	"context"
	"fmt"
	"sync"

	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/models"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/paystack"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/store"
)

// fakeStore is an in-memory Store that reproduces the backing store's
// uniqueness guarantee on orders.payment_reference.
type fakeStore struct {
	mu           sync.Mutex
	pendings     map[string]*models.PendingOrder // by id
	ordersByRef  map[string]*models.Order
	transactions map[string]*models.PaymentTransaction
	orderSeq     int
	invoiceSeq   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pendings:     map[string]*models.PendingOrder{},
		ordersByRef:  map[string]*models.Order{},
		transactions: map[string]*models.PaymentTransaction{},
	}
}

func (f *fakeStore) CreatePendingOrder(_ context.Context, p *models.PendingOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.pendings[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetPendingOrder(_ context.Context, id string) (*models.PendingOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pendings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetPendingByReference(_ context.Context, reference string) (*models.PendingOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pendings {
		if p.PaymentReference == reference {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) UpdatePendingStatus(_ context.Context, id string, from []models.PaymentStatus, to models.PaymentStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pendings[id]
	if !ok {
		return 0, nil
	}
	for _, s := range from {
		if p.Status == s {
			p.Status = to
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeStore) CommitOrder(_ context.Context, order *models.Order, tx *models.PaymentTransaction) (*models.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.ordersByRef[order.PaymentReference]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *order
	f.ordersByRef[order.PaymentReference] = &cp
	for _, p := range f.pendings {
		if p.PaymentReference == order.PaymentReference {
			p.Status = models.PaymentSuccess
		}
	}
	txc := *tx
	f.transactions[tx.Reference] = &txc
	out := cp
	return &out, true, nil
}

func (f *fakeStore) GetOrderByReference(_ context.Context, reference string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.ordersByRef[reference]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) UpsertTransaction(_ context.Context, tx *models.PaymentTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *tx
	f.transactions[tx.Reference] = &cp
	return nil
}

func (f *fakeStore) NextOrderNumber(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderSeq++
	return fmt.Sprintf("GRV-%06d", f.orderSeq), nil
}

func (f *fakeStore) NextInvoiceNumber(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoiceSeq++
	return fmt.Sprintf("INV-%06d", f.invoiceSeq), nil
}

func (f *fakeStore) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ordersByRef)
}

// fakeGateway scripts the provider's answers.
type fakeGateway struct {
	mu          sync.Mutex
	initErr     error
	verify      *paystack.VerifyResult
	verifyErr   error
	verifyCalls int
}

func (g *fakeGateway) Initialize(_ context.Context, _ string, _ int64, reference, _ string, _ map[string]string) (*paystack.InitResult, error) {
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &paystack.InitResult{
		AuthorizationURL: "https://checkout.test/" + reference,
		AccessCode:       "ac_" + reference,
		Reference:        reference,
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, _ string) (*paystack.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	cp := *g.verify
	return &cp, nil
}

// fakeProducts backs the real pricing service in engine tests.
type fakeProducts map[string]*models.Product

func (f fakeProducts) GetProducts(_ context.Context, ids []string) (map[string]*models.Product, error) {
	out := map[string]*models.Product{}
	for _, id := range ids {
		if p, ok := f[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
