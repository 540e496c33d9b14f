// Package server exposes the order mutation API over HTTP: order and
// ledger-entry CRUD, funding reports, the completion transition and
// the amendment approval workflow.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ravilg/fxdesk/internal/entity"
	"github.com/ravilg/fxdesk/internal/services/reconcile"
	"github.com/ravilg/fxdesk/internal/storage/journal"
)

// Storage is the persistence surface the server needs.
type Storage interface {
	CreateOrder(ctx context.Context, o entity.Order) (int64, error)
	GetOrder(ctx context.Context, id int64) (entity.Order, error)
	UpdateOrder(ctx context.Context, o entity.Order) error
	UpdateOrderStatus(ctx context.Context, id int64, status entity.OrderStatus) error

	ListEntries(ctx context.Context, orderID int64) ([]entity.LedgerEntry, error)
	AddEntry(ctx context.Context, e entity.LedgerEntry) (int64, error)
	ConfirmEntry(ctx context.Context, orderID, entryID int64) error
	DeleteEntry(ctx context.Context, orderID, entryID int64) error

	CreateAmendment(ctx context.Context, a entity.AmendmentRequest) error
	GetAmendment(ctx context.Context, id string) (entity.AmendmentRequest, error)
	SetAmendmentStatus(ctx context.Context, id string, status entity.AmendmentStatus) error
	ApplyAmendment(ctx context.Context, amendmentID string, o entity.Order, entries []entity.LedgerEntry) error

	ListCurrencies(ctx context.Context) (map[string]entity.Currency, error)
	UpsertCurrency(ctx context.Context, c entity.Currency) error

	GetPreference(ctx context.Context, userID int64, key string) (string, bool, error)
	SetPreference(ctx context.Context, userID int64, key, value string) error
	ClearPreference(ctx context.Context, userID int64, key string) error
}

// BalanceLookup reports an account balance when one is known. Used
// only to warn about payments that would overdraw an account, never
// to block them.
type BalanceLookup func(ctx context.Context, accountID int64) (decimal.Decimal, bool)

type Server struct {
	addr     string
	storage  Storage
	journal  *journal.Journal
	balances BalanceLookup
	tol      reconcile.Tolerances
	logger   *zap.Logger

	// inflight collapses concurrent duplicate submissions (a double
	// clicked Complete or Save) into one execution.
	inflight singleflight.Group
}

func New(addr string, storage Storage, jrnl *journal.Journal, balances BalanceLookup, tol reconcile.Tolerances, logger *zap.Logger) *Server {
	return &Server{
		addr:     addr,
		storage:  storage,
		journal:  jrnl,
		balances: balances,
		tol:      tol,
		logger:   logger,
	}
}

func (s *Server) buildRouter() http.Handler {
	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(logMiddleware(s.logger))
	router.Use(metricsMiddleware)

	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Post("/orders", s.CreateOrderHandler)
		r.Get("/orders/{orderID}", s.GetOrderHandler)
		r.Patch("/orders/{orderID}", s.UpdateOrderHandler)
		r.Get("/orders/{orderID}/funding", s.FundingReportHandler)
		r.Post("/orders/{orderID}/complete", s.CompleteOrderHandler)

		r.Post("/orders/{orderID}/entries", s.AddEntryHandler)
		r.Post("/orders/{orderID}/entries/{entryID}/confirm", s.ConfirmEntryHandler)
		r.Delete("/orders/{orderID}/entries/{entryID}", s.DeleteEntryHandler)

		r.Post("/orders/{orderID}/amendments", s.SubmitAmendmentHandler)
		r.Get("/amendments/{amendmentID}", s.GetAmendmentHandler)
		r.Post("/amendments/{amendmentID}/apply", s.ApplyAmendmentHandler)
		r.Post("/amendments/{amendmentID}/discard", s.DiscardAmendmentHandler)

		r.Get("/currencies", s.ListCurrenciesHandler)
		r.Put("/currencies/{code}", s.UpsertCurrencyHandler)

		r.Get("/users/{userID}/preferences/{key}", s.GetPreferenceHandler)
		r.Put("/users/{userID}/preferences/{key}", s.SetPreferenceHandler)
		r.Delete("/users/{userID}/preferences/{key}", s.ClearPreferenceHandler)
	})

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
