// Command fxdesk runs the exchange desk reconciliation service: a
// Postgres-backed order book with funding reconciliation, order
// completion and the amendment approval workflow, exposed over HTTP.
//
// Usage:
//
//	fxdesk --config config.yaml
//	fxdesk --database postgres://... --listen :8080
//	fxdesk --wizard   (interactive order entry)
//
// The database URI can also come from FXDESK_DATABASE_URI.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ravilg/fxdesk/config"
	"github.com/ravilg/fxdesk/internal/server"
	"github.com/ravilg/fxdesk/internal/services/reconcile"
	"github.com/ravilg/fxdesk/internal/setup"
	"github.com/ravilg/fxdesk/internal/storage/journal"
	"github.com/ravilg/fxdesk/internal/storage/orders"
	"github.com/ravilg/fxdesk/pkg/retrier"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	tol := reconcile.Tolerances{
		Funding: cfg.FundingTolerance,
		Leg:     cfg.LegTolerance,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *orders.PostgresStore
	err = retrier.Default().Do(ctx, func(ctx context.Context) error {
		var connErr error
		store, connErr = orders.NewPostgresStore(ctx, cfg.DatabaseURI)
		if connErr != nil {
			logger.Warn("database not ready, retrying", zap.Error(connErr))
		}
		return connErr
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	if cfg.Wizard {
		if err := setup.RunTUI(ctx, store); err != nil {
			logger.Fatal("order wizard failed", zap.Error(err))
		}
		return
	}

	jrnl, err := journal.Open(cfg.JournalDir)
	if err != nil {
		logger.Fatal("failed to open approval journal", zap.Error(err))
	}
	defer jrnl.Close()

	srv := server.New(cfg.ListenAddr, store, jrnl, nil, tol, logger)
	logger.Info("fxdesk started", zap.String("addr", cfg.ListenAddr))
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
