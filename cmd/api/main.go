package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"tableside/internal/checkout"
	"tableside/internal/config"
	"tableside/internal/db"
	"tableside/internal/feed"
	"tableside/internal/httpserver"
	"tableside/internal/lifecycle"
	orderrepo "tableside/internal/repository/order"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	var updates feed.Feed
	if cfg.NATSURL != "" {
		updates, err = feed.NewNATS(cfg.NATSURL, logger)
		if err != nil {
			logger.Fatalf("connect to nats: %v", err)
		}
	} else {
		logger.Printf("NATS_URL not set, using in-process change feed")
		updates = feed.NewMemory()
	}
	defer updates.Close()

	orderRepo := orderrepo.NewPostgres(dbpool)

	engine := lifecycle.New(orderRepo, updates, lifecycle.Config{
		PlacedFor: cfg.PlacedFor,
		PrepFor:   cfg.PrepFor,
	}, logger)
	engine.OnCompleted(func(orderNumber int64) {
		logger.Printf("order %d completed, notifying customer", orderNumber)
	})
	if err := engine.Start(ctx); err != nil {
		logger.Fatalf("start lifecycle engine: %v", err)
	}
	defer engine.Stop()

	checkoutSvc := checkout.New(orderRepo, nil, engine, logger, cfg.PlacedFor)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Checkout:  checkoutSvc,
		Orders:    orderRepo,
		Lifecycle: engine,
		Feed:      updates,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Printf("server error: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
