package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pinecart/shipsync/config"
	"github.com/pinecart/shipsync/internal/broker/kafka"
	"github.com/pinecart/shipsync/internal/cache/rediscache"
	"github.com/pinecart/shipsync/internal/integrations/carrier"
	"github.com/pinecart/shipsync/internal/integrations/carrier/fake"
	"github.com/pinecart/shipsync/internal/integrations/carrier/shipyaarihttp"
	"github.com/pinecart/shipsync/internal/services/tracking"
	"github.com/pinecart/shipsync/internal/storage/pgorders"
)

type shipAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     shipAPIOpts
	svc      *tracking.Service
	storage  *pgorders.Storage
	consumer *kafka.Consumer
}

func mustBootstrapShipAPI() *shipAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config: %v", err))
	}

	httpAddr := cfg.ShipSync.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.ShipSync.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "ship-api"
	}
	topic := cfg.Kafka.ShipmentUpdatedTopicName
	if topic == "" {
		topic = "shipment.updated"
	}
	cacheTTL := time.Duration(cfg.ShipSync.TrackingCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	st := mustOpenPostgresWithRetry(connString(cfg), 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	svc := tracking.New(st, newCarrierClient(cfg), rc, producer, topic, cacheTTL)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &shipAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: shipAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			webhookToken:  cfg.ShipSync.WebhookToken,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		svc:      svc,
		storage:  st,
		consumer: consumer,
	}
}

func connString(cfg *config.Config) string {
	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
}

func newCarrierClient(cfg *config.Config) carrier.Client {
	// The deterministic fake keeps local demos independent of carrier creds.
	if cfg.ShipSync.CarrierMode == "fake" || cfg.ShipSync.CarrierBaseURL == "" {
		return fake.New()
	}
	return shipyaarihttp.New(cfg.ShipSync.CarrierBaseURL, cfg.ShipSync.CarrierEmail, cfg.ShipSync.CarrierPassword)
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgorders.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgorders.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *shipAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.storage != nil {
		a.storage.Close()
	}
}

func (a *shipAPIApp) Run() error {
	return runShipAPI(a.ctx, a.opts, a.svc, a.storage, a.consumer)
}
