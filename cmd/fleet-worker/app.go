package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BearBump/FleetTrack/config"
	"github.com/BearBump/FleetTrack/internal/broker/kafka"
	"github.com/BearBump/FleetTrack/internal/cache/rediscache"
	"github.com/BearBump/FleetTrack/internal/services/maintenance"
	"github.com/BearBump/FleetTrack/internal/services/odometer"
	"github.com/BearBump/FleetTrack/internal/services/scanner"
	"github.com/BearBump/FleetTrack/internal/services/vehicles"
	"github.com/BearBump/FleetTrack/internal/storage"
)

type eventConsumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
	Close() error
}

type workerFactories struct {
	newStorage  func(ctx context.Context, cfg *config.Config) (storage.Storage, error)
	newProducer func(cfg *config.Config) (p scanner.Producer, closeFn func())
	newDeduper  func(cfg *config.Config) scanner.Deduper
	// newConsumer returns nil when journey events are not available.
	newConsumer func(cfg *config.Config) eventConsumer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
			return storage.Open(ctx, cfg.Storage.Driver, cfg.Database, 60*time.Second)
		},
		newProducer: func(cfg *config.Config) (scanner.Producer, func()) {
			if cfg.Kafka.Host == "" {
				return logProducer{}, func() {}
			}
			p := kafka.NewProducer(cfg.Kafka.Brokers())
			return p, func() { _ = p.Close() }
		},
		newDeduper: func(cfg *config.Config) scanner.Deduper {
			if cfg.Redis.Host == "" {
				return nil
			}
			return rediscache.NewRateLimiter(cfg.Redis.Addr())
		},
		newConsumer: func(cfg *config.Config) eventConsumer {
			if cfg.Kafka.Host == "" {
				return nil
			}
			return kafka.NewConsumer(cfg.Kafka.Brokers(), journeyEventsTopic(cfg), consumerGroup(cfg))
		},
	}
}

// logProducer stands in for kafka in local runs: alerts only reach the log.
type logProducer struct{}

func (logProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	slog.Info("maintenance alert", "topic", topic, "key", string(key), "value", string(value))
	return nil
}

type fleetWorker struct {
	scanner  *scanner.Scanner
	odometer *odometer.Sync
	store    storage.Storage
}

func RunFleetWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts workerHTTPOpts) error {
	alertsTopic := cfg.Kafka.MaintenanceAlertsTopic
	if alertsTopic == "" {
		alertsTopic = "maintenance.alerts"
	}
	scanInterval := time.Duration(cfg.FleetTrack.WorkerScanIntervalSeconds) * time.Second
	if scanInterval <= 0 {
		scanInterval = time.Hour
	}

	st, err := f.newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	producer, closeProducer := f.newProducer(cfg)
	defer closeProducer()

	advisor := maintenance.New(st, cfg.FleetTrack.UpcomingWindowDays, cfg.FleetTrack.UpcomingWindowKm)
	w := &fleetWorker{
		scanner:  scanner.New(advisor, producer, f.newDeduper(cfg), alertsTopic).WithSettings(scanInterval, 0, 0),
		odometer: odometer.New(vehicles.New(st)),
		store:    st,
	}

	httpOpts.worker = w
	httpOpts.cfg = cfg

	errCh := make(chan error, 3)
	go func() { errCh <- w.scanner.Run(ctx) }()
	go func() { errCh <- runWorkerHTTPServer(ctx, httpOpts) }()
	go func() { errCh <- runOdometerSync(ctx, cfg, f, w.odometer) }()

	err = <-errCh
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// runOdometerSync restarts the consumer after a handler failure so the
// uncommitted event is fetched again.
func runOdometerSync(ctx context.Context, cfg *config.Config, f workerFactories, od *odometer.Sync) error {
	for {
		c := f.newConsumer(cfg)
		if c == nil {
			slog.Warn("kafka is not configured: odometer sync is off")
			<-ctx.Done()
			return ctx.Err()
		}
		slog.Info("odometer sync started", "topic", journeyEventsTopic(cfg), "group", consumerGroup(cfg))
		err := c.Consume(ctx, od.Handle)
		_ = c.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		slog.Error("odometer sync stopped, restarting", "error", err.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func journeyEventsTopic(cfg *config.Config) string {
	if cfg.Kafka.JourneyEventsTopic == "" {
		return "journey.events"
	}
	return cfg.Kafka.JourneyEventsTopic
}

func consumerGroup(cfg *config.Config) string {
	if cfg.FleetTrack.WorkerConsumerGroup == "" {
		return "fleet-odometer"
	}
	return cfg.FleetTrack.WorkerConsumerGroup
}
