// Command server runs the obligation review ledger: HTTP API, background SLA
// sweep, and the lock observability sweep. Stores degrade gracefully - without
// Postgres or Redis configured the server runs entirely in memory for local
// development.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"attest/internal/platform/config"
	"attest/internal/platform/events"
	"attest/internal/platform/httpserver"
	"attest/internal/platform/logger"
	"attest/internal/platform/postgres"
	redisplatform "attest/internal/platform/redis"
	"attest/internal/review/adapters"
	"attest/internal/review/handler"
	"attest/internal/review/metrics"
	"attest/internal/review/ports"
	"attest/internal/review/service"
	"attest/internal/review/store"
	chainstore "attest/internal/review/store/chain"
	decisionstore "attest/internal/review/store/decision"
	lockstore "attest/internal/review/store/lock"
	requeststore "attest/internal/review/store/request"
	"attest/pkg/platform/middleware/auth"
	"attest/pkg/platform/middleware/metadata"
)

const lockReaperInterval = time.Minute

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence. A configured Postgres URL selects the durable stores and
	// the real transaction runner; otherwise everything lives in memory.
	var (
		entries   store.EntryStore
		requests  store.RequestStore
		decisions store.DecisionStore
		txRunner  store.TxRunner
	)
	db, err := postgres.Open(cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if db != nil {
		defer db.Close()
		if _, err := db.ExecContext(ctx, store.SchemaDDL); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		entries = chainstore.NewPostgres(db)
		requests = requeststore.NewPostgres(db)
		decisions = decisionstore.NewPostgres(db)
		txRunner = newLedgerPostgresTx(db)
		log.Info("using postgres stores")
	} else {
		entries = chainstore.NewMemory()
		requests = requeststore.NewMemory()
		decisions = decisionstore.NewMemory()
		txRunner = store.PassthroughTx{}
		log.Info("using in-memory stores")
	}

	// Review leases: Redis when configured, Postgres when only the database
	// is available, in-process otherwise.
	var locks store.LockStore
	redisClient, err := redisplatform.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	switch {
	case redisClient != nil:
		defer redisClient.Close()
		locks = lockstore.NewRedis(redisClient.Client, ports.SystemClock{})
		log.Info("using redis lock store")
	case db != nil:
		locks = lockstore.NewPostgres(db, ports.SystemClock{})
		log.Info("using postgres lock store")
	default:
		locks = lockstore.NewMemory(ports.SystemClock{})
		log.Info("using in-memory lock store")
	}

	// Domain events: Kafka when brokers are configured.
	var publisher ports.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafka(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafka.Close()
		publisher = kafka
		log.Info("publishing events to kafka", "topic", cfg.KafkaTopic)
	} else {
		publisher = events.NewMemory()
	}

	// External directories come from snapshot exports.
	targets, err := adapters.NewFileTargetRepository(cfg.TargetsFile)
	if err != nil {
		return fmt.Errorf("load targets: %w", err)
	}
	reviewers, err := adapters.NewFileReviewerDirectory(cfg.ReviewersFile)
	if err != nil {
		return fmt.Errorf("load reviewers: %w", err)
	}

	ledgerMetrics := metrics.New()
	svc, err := service.New(entries, requests, decisions, locks, targets,
		service.WithReviewerDirectory(reviewers),
		service.WithPublisher(publisher),
		service.WithTxRunner(txRunner),
		service.WithLogger(log),
		service.WithMetrics(ledgerMetrics),
		service.WithLockTTL(cfg.LockTTL),
	)
	if err != nil {
		return fmt.Errorf("build ledger service: %w", err)
	}

	router := chi.NewRouter()
	router.Use(metadata.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	validator := auth.NewValidator(cfg.JWTSigningKey)
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireReviewer(validator, log))
		handler.New(svc, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting attest ledger", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return svc.RunSLASweep(ctx, cfg.SLASweepInterval)
	})
	group.Go(func() error {
		return svc.RunLockReaper(ctx, lockReaperInterval)
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
