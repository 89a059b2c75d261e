package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/config"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/db"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/services"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/store"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/worker"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)
	w := &worker.Worker{
		Store:       st,
		Invoices:    services.StaticInvoiceGenerator{BaseURL: cfg.Invoices.BaseURL},
		Notifier:    services.LogNotifier{},
		Interval:    time.Duration(cfg.Worker.SweepIntervalSeconds) * time.Second,
		Batch:       cfg.Worker.OutboxBatch,
		MaxAttempts: cfg.Worker.OutboxMaxAttempts,
	}

	log.Printf("worker started (interval=%ds)", cfg.Worker.SweepIntervalSeconds)
	w.Run(ctx)
}
