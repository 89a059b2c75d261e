package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/models"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/services"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/store"
)

// Worker sweeps expired pending orders and drains the side-effect outbox.
// Expiry is an inventory-holding concern: a swept reference that later
// verifies as paid is still committed by the engine.
type Worker struct {
	Store       *store.Store
	Invoices    services.InvoiceGenerator
	Notifier    services.Notifier
	Interval    time.Duration
	Batch       int
	MaxAttempts int
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		if err := w.SweepOnce(ctx); err != nil {
			log.Printf("sweep error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) SweepOnce(ctx context.Context) error {
	expired, err := w.Store.MarkExpired(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if expired > 0 {
		log.Printf("sweep expired=%d", expired)
	}

	if err := w.Store.RequeueStaleOutbox(ctx, 5*time.Minute); err != nil {
		return err
	}
	return w.drainOutbox(ctx)
}

func (w *Worker) drainOutbox(ctx context.Context) error {
	entries, err := w.Store.ClaimOutbox(ctx, w.Batch)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := w.process(ctx, entry); err != nil {
			log.Printf("outbox %d (%s order=%s) failed: %v", entry.ID, entry.Kind, entry.OrderID, err)
			if ferr := w.Store.FailOutbox(ctx, entry.ID, err.Error(), w.MaxAttempts); ferr != nil {
				return ferr
			}
			continue
		}
		if err := w.Store.CompleteOutbox(ctx, entry.ID); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) process(ctx context.Context, entry *models.OutboxEntry) error {
	order, err := w.Store.GetOrder(ctx, entry.OrderID)
	if err != nil {
		return err
	}
	switch entry.Kind {
	case models.OutboxInvoice:
		pdfURL, imageURL, err := w.Invoices.Generate(ctx, order)
		if err != nil {
			return err
		}
		return w.Store.SetInvoiceURLs(ctx, order.ID, pdfURL, imageURL)
	case models.OutboxNotify:
		return w.Notifier.OrderConfirmed(ctx, order)
	default:
		return fmt.Errorf("unknown outbox kind %q", entry.Kind)
	}
}
