package services

import (
	"context"
	"log"

	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/models"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/money"
)

// InvoiceGenerator and Notifier are the narrow interfaces to the external
// rendering and email collaborators. They run from the outbox worker, never
// from the commit request path.

type InvoiceGenerator interface {
	Generate(ctx context.Context, order *models.Order) (pdfURL, imageURL string, err error)
}

type Notifier interface {
	OrderConfirmed(ctx context.Context, order *models.Order) error
}

// StaticInvoiceGenerator derives invoice artifact URLs from a base path
// where the external renderer publishes by invoice number.
type StaticInvoiceGenerator struct {
	BaseURL string
}

func (g StaticInvoiceGenerator) Generate(_ context.Context, order *models.Order) (string, string, error) {
	return g.BaseURL + "/invoices/" + order.InvoiceNumber + ".pdf",
		g.BaseURL + "/invoices/" + order.InvoiceNumber + ".png",
		nil
}

// LogNotifier stands in for the email collaborator.
type LogNotifier struct{}

func (LogNotifier) OrderConfirmed(_ context.Context, order *models.Order) error {
	log.Printf("notify user=%s order=%s total=%s", order.UserID, order.OrderNumber, money.FormatMajor(order.Totals.TotalMinor))
	return nil
}
