// Worker expires stale sessions on SESSION_SWEEP_INTERVAL and, when KAFKA_BROKERS and LOKI_URL
// are set, forwards activity events from Kafka to Loki.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chancafe-q/backend/internal/config"
	"chancafe-q/backend/internal/db"
	"chancafe-q/backend/internal/logger"
	sessionservice "chancafe-q/backend/internal/session/service"
	"chancafe-q/backend/internal/telemetry/loki"
)

const pushTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := logger.Must(cfg.Env, cfg.LogLevel, "chancafe-q-worker")
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := db.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatal("open stores", zap.Error(err))
	}
	defer stores.Close()
	sessions := sessionservice.NewStore(stores.Sessions, stores.Users, cfg.SessionTTL(), nil)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweep(ctx, sessions, cfg.SessionSweepInterval(), log.Named("sweeper"))
		return nil
	})

	brokers := cfg.ActivityKafkaBrokersList()
	if len(brokers) > 0 && cfg.LokiURL != "" {
		client, err := loki.NewClient(cfg.LokiURL, nil)
		if err != nil {
			log.Fatal("loki client", zap.Error(err))
		}
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          cfg.ActivityKafkaTopic,
			GroupID:        cfg.KafkaGroupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        time.Second,
			CommitInterval: time.Second,
		})
		defer reader.Close()
		g.Go(func() error {
			forward(ctx, reader, client, log.Named("forwarder"))
			return nil
		})
		log.Info("forwarding activity to loki",
			zap.String("topic", cfg.ActivityKafkaTopic), zap.String("group", cfg.KafkaGroupID), zap.String("loki", cfg.LokiURL))
	} else {
		log.Info("activity forwarding disabled; set KAFKA_BROKERS and LOKI_URL to enable")
	}

	_ = g.Wait()
	log.Info("worker stopped")
}

// sweep marks expired sessions on every tick until ctx ends.
func sweep(ctx context.Context, sessions *sessionservice.Store, interval time.Duration, log *zap.Logger) {
	run := func() {
		n, err := sessions.SweepExpired(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("sweep failed", zap.Error(err))
			}
			return
		}
		if n > 0 {
			log.Info("expired stale sessions", zap.Int64("count", n))
		}
	}
	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// forward pushes each Kafka message to Loki. Push failures are logged and the offset still advances.
func forward(ctx context.Context, reader *kafka.Reader, client *loki.Client, log *zap.Logger) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("kafka read", zap.Error(err))
			continue
		}
		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := client.PushActivityJSON(pushCtx, msg.Value); err != nil {
			log.Warn("loki push", zap.Error(err), zap.Int64("offset", msg.Offset))
		}
		cancel()
	}
}
