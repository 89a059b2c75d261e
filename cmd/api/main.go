package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/config"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/db"
	internalhttp "github.com/ericknextlink-cmd/grovio-admin-sub003/internal/http"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/paystack"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/pricing"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/recon"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/services"
	"github.com/ericknextlink-cmd/grovio-admin-sub003/internal/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)
	gateway, err := paystack.New(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey, time.Duration(cfg.Paystack.TimeoutSeconds)*time.Second)
	if err != nil {
		log.Fatalf("paystack client init failed: %v", err)
	}

	engine := &recon.Engine{
		Store:       st,
		Gateway:     gateway,
		Pricing:     pricing.Service{Products: st},
		TTL:         time.Duration(cfg.Orders.TTLMinutes) * time.Minute,
		CallbackURL: cfg.Paystack.CallbackURL,
	}
	orderSvc := &services.OrderService{Store: st}

	h := internalhttp.NewHandler(engine, orderSvc, gateway, cfg.Admin.Token)
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.Printf("api listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
