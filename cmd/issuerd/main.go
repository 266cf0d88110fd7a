package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"credchain/internal/archive"
	"credchain/internal/archive/pinata"
	"credchain/internal/audit"
	"credchain/internal/ledger"
	"credchain/internal/minter"
	"credchain/internal/platform/config"
	"credchain/internal/platform/health"
	"credchain/internal/platform/httpserver"
	"credchain/internal/platform/logger"
	"credchain/internal/platform/metrics"
	"credchain/internal/registry"
	"credchain/internal/request"
)

// main wires dependencies and keeps the process lifecycle small. Business
// logic lives in the internal packages; the HTTP surface here is health and
// metrics only.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("initializing issuerd",
		"addr", cfg.Addr,
		"registry_app_id", cfg.RegistryAppID,
		"confirmation_rounds", cfg.ConfirmationRounds,
	)

	issuer, err := ledger.AccountFromSeed(cfg.IssuerSeed)
	if err != nil {
		log.Error("invalid issuer seed", "error", err)
		os.Exit(1)
	}

	chain := ledger.NewHTTPClient(cfg.AlgodURL, cfg.AlgodToken)
	oracle := registry.NewOracle(chain, cfg.RegistryAppID, registry.WithLogger(log))
	evidence := archive.New(pinata.New(cfg.PinataAPIKey, cfg.PinataSecret))
	mint := minter.New(chain, evidence, issuer,
		minter.WithMaxRounds(cfg.ConfirmationRounds),
		minter.WithLogger(log),
	)

	store := request.NewInMemoryStore()
	auditTrail := audit.NewInMemoryStore()
	svc := request.NewService(store, oracle, mint, evidence,
		request.WithLogger(log),
		request.WithMetrics(metrics.New()),
		request.WithAuditor(auditTrail),
	)

	// Startup probes run in parallel: the ledger must answer, and the
	// on-chain issuing authority must be the account we sign with. A
	// divergence means every mint would come from an unrecognized signer,
	// so it is fatal, not degraded.
	probeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	g, probeCtx := errgroup.WithContext(probeCtx)
	g.Go(func() error {
		_, err := chain.SuggestedParams(probeCtx)
		return err
	})
	g.Go(func() error {
		return svc.VerifyIssuerBinding(probeCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("startup probe failed", "error", err)
		os.Exit(1)
	}

	log.Info("issuer binding verified", "issuer", issuer.Address)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)

	healthHandler := health.New(cfg.Environment)
	healthHandler.RegisterCheck("ledger", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := chain.SuggestedParams(ctx)
		return err
	})
	healthHandler.RegisterCheck("registry", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := oracle.ResolveAuthorities(ctx)
		return err
	})
	healthHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
