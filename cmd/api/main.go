package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mgHariom/orderly/internal/catalog"
	"github.com/mgHariom/orderly/internal/config"
	"github.com/mgHariom/orderly/internal/docstore"
	"github.com/mgHariom/orderly/internal/httpx"
	kafkax "github.com/mgHariom/orderly/internal/kafka"
	"github.com/mgHariom/orderly/internal/orders"
	"github.com/mgHariom/orderly/internal/postgres"
	"github.com/mgHariom/orderly/internal/redisx"
	"github.com/mgHariom/orderly/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.WithFields(logger.String("service", cfg.ServiceName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, idem, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatal("open store", logger.String("backend", cfg.StoreBackend), logger.Error(err))
	}
	defer backend.Close()
	log.Info("store ready", logger.String("backend", cfg.StoreBackend))

	// Kafka producer, only when brokers are configured
	var publisher orders.Publisher = orders.NopPublisher{}
	var prod *kafkax.Producer
	if cfg.PublishingEnabled() {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
		prod.Start()
		publisher = kafkax.NewEventPublisher(prod)
	}

	pending := orders.NewPendingOrderStore(backend)
	history := orders.NewOrderHistoryStore(backend)
	engine := orders.NewEngine(pending, history,
		orders.WithPublisher(publisher),
		orders.WithLogger(log),
		orders.WithProducerName(cfg.ServiceName),
	)
	if n, err := engine.Recover(ctx); err != nil {
		log.Error("recover pending batches", logger.Error(err))
	} else if n > 0 {
		log.Warn("removed batches already in history", logger.Int("count", n))
	}

	monitor := orders.NewMonitor(pending, history, orders.MonitorConfig{
		Threshold: cfg.AgedThreshold,
		Interval:  cfg.AgedScanInterval,
		Publisher: publisher,
		Logger:    log,
		Producer:  cfg.ServiceName,
	})
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		_ = monitor.Run(ctx)
	}()

	cat := catalog.NewService(backend)
	router := httpx.NewRouter(log)
	h := &httpx.Handler{
		Catalog: cat,
		Engine:  engine,
		Pending: pending,
		History: history,
		Stager:  orders.NewStager(cat, engine),
		Monitor: monitor,
		Log:     log,
	}
	if idem != nil {
		h.Idem = idem
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("http listening", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", logger.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	// stop accepting requests first so no event is published after the producer closes
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
	<-monitorDone
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
}

// openBackend returns the document store for cfg.StoreBackend. The redis
// backend also provides the idempotency store for batch submission.
func openBackend(ctx context.Context, cfg config.Config) (docstore.Backend, *redisx.Idempotency, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.WithApplicationName(cfg.ServiceName))
		if err != nil {
			return nil, nil, err
		}
		store, err := postgres.NewDocStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, nil, nil
	case config.BackendRedis:
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return redisx.NewDocStore(rdb), redisx.NewIdempotency(rdb), nil
	default:
		return docstore.NewMemory(), nil, nil
	}
}
