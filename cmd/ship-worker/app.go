package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/pinecart/shipsync/config"
	"github.com/pinecart/shipsync/internal/broker/kafka"
	"github.com/pinecart/shipsync/internal/cache"
	"github.com/pinecart/shipsync/internal/cache/rediscache"
	"github.com/pinecart/shipsync/internal/integrations/carrier"
	"github.com/pinecart/shipsync/internal/integrations/carrier/fake"
	"github.com/pinecart/shipsync/internal/integrations/carrier/shipyaarihttp"
	"github.com/pinecart/shipsync/internal/services/poller"
	"github.com/pinecart/shipsync/internal/services/tracking"
	"github.com/pinecart/shipsync/internal/storage/pgorders"
)

// workerStorage is what the daemon needs from the store: the page scan for
// the sweep plus the lookup and write surface of the tracking service.
type workerStorage interface {
	poller.Repository
	tracking.Repository
}

type workerFactories struct {
	newStorage       func(cfg *config.Config) (repo workerStorage, closeFn func(), err error)
	newProducer      func(cfg *config.Config) tracking.Producer
	newCache         func(cfg *config.Config) cache.BytesCache
	newRateLimiter   func(cfg *config.Config) poller.RateLimiter
	newCarrierClient func(cfg *config.Config) carrier.Client
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStorage, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgorders.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) tracking.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.New(redisAddr)
		},
		newRateLimiter: func(cfg *config.Config) poller.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newCarrierClient: func(cfg *config.Config) carrier.Client {
			// Local demos run against the deterministic fake; real creds
			// switch on the HTTP client.
			if cfg.ShipSync.CarrierMode == "fake" || cfg.ShipSync.CarrierBaseURL == "" {
				return fake.New()
			}
			return shipyaarihttp.New(cfg.ShipSync.CarrierBaseURL, cfg.ShipSync.CarrierEmail, cfg.ShipSync.CarrierPassword)
		},
	}
}

func RunShipWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	topic := cfg.Kafka.ShipmentUpdatedTopicName
	if topic == "" {
		topic = "shipment.updated"
	}

	pollInterval := time.Duration(cfg.ShipSync.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 30 * time.Minute
	}
	pageSize := cfg.ShipSync.WorkerPageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	concurrency := cfg.ShipSync.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	rlPerMin := int64(cfg.ShipSync.WorkerRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	carrierClient := f.newCarrierClient(cfg)

	var c cache.BytesCache
	if f.newCache != nil {
		c = f.newCache(cfg)
	}
	var producer tracking.Producer
	if f.newProducer != nil {
		producer = f.newProducer(cfg)
	}

	svc := tracking.New(repo, carrierClient, c, producer, topic, 0)

	p := poller.New(repo, carrierClient, svc, f.newRateLimiter(cfg)).
		WithSettings(pollInterval, pageSize, concurrency, rlPerMin)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })

	if cfg.ShipSync.WorkerHTTPAddr != "" {
		g.Go(func() error {
			err := runWorkerHTTPServer(gctx, workerHTTPOpts{
				httpAddr:    cfg.ShipSync.WorkerHTTPAddr,
				swaggerPath: os.Getenv("swaggerPath"),
				poller:      p,
				cfg:         cfg,
			})
			if errors.Is(err, http.ErrServerClosed) {
				return gctx.Err()
			}
			return err
		})
	}

	return g.Wait()
}
