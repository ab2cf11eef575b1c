package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/outlet-pos/api/internal/config"
	"github.com/outlet-pos/api/internal/database"
	"github.com/outlet-pos/api/internal/folio"
	"github.com/outlet-pos/api/internal/messaging"
	mw "github.com/outlet-pos/api/internal/middleware"
	"github.com/outlet-pos/api/internal/payment"
	"github.com/outlet-pos/api/internal/router"
	"github.com/outlet-pos/api/internal/service"
	"github.com/outlet-pos/api/internal/ws"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("ERROR: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		log.Println("Migrations applied")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	change, err := payment.NewChangeMaker(cfg.CashDenominations)
	if err != nil {
		return fmt.Errorf("cash denominations: %w", err)
	}
	if !change.Canonical() {
		log.Printf("WARNING: cash denominations are not canonical, change uses the exact algorithm")
	}

	hub := ws.NewHub()
	notifiers := service.Notifiers{hub}
	if cfg.RabbitMQURL != "" {
		publisher := messaging.NewPublisher(cfg.RabbitMQURL)
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
	}

	deps := router.Deps{
		Queries:  database.New(pool),
		Pool:     pool,
		Hub:      hub,
		Notifier: notifiers,
		Change:   change,
		Limiter:  mw.NewOutletRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	if cfg.FolioURL != "" {
		deps.Folio = folio.NewClient(cfg.FolioURL, cfg.FolioAPIKey, cfg.FolioRPS)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		deps.Limiter.RunCleanup(ctx.Done())
		return nil
	})
	g.Go(func() error {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
