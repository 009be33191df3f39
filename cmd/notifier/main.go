package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mgHariom/orderly/internal/config"
	kafkax "github.com/mgHariom/orderly/internal/kafka"
	"github.com/mgHariom/orderly/internal/notify"
	"github.com/mgHariom/orderly/internal/orders"
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

	if !cfg.PublishingEnabled() {
		log.Fatal("KAFKA_BROKERS is required for the notifier")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", logger.Error(err))
	}
	defer rdb.Close()

	service := cfg.ServiceName + "-notifier"
	svc := notify.NewService(redisx.NewDedup(rdb, service), log)

	topics := []string{orders.TopicPending, orders.TopicHistory, orders.TopicAlerts}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topics, cfg.NotifierWorkers, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("notifier consumer started",
			logger.String("group", cfg.NotifierGroup),
			logger.Any("topics", topics),
			logger.Int("workers", cfg.NotifierWorkers))
		if err := cons.Start(ctx, svc.HandleMessage); err != nil {
			log.Error("consumer exit", logger.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	<-done
}
