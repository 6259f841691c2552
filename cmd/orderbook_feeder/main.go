package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/kafka"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/marketdata"
	"github.com/hetulpatel/crossarb/internal/workers"
)

const component = "orderbook-feeder"

func main() {
	configPath := flag.String("config", os.Getenv("CROSSARB_CONFIG"), "path to TOML config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("[%s] load config: %v", component, err)
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("[%s] %v", component, err)
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

	client, err := marketdata.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logging.Fatalf("[%s] redis: %v", component, err)
	}
	defer client.Close()

	brokers := cfg.Kafka.Brokers
	topic := cfg.MarketData.FeedTopic
	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Fatalf("[%s] wait for broker: %v", component, err)
	}
	cancel()

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopic(ensureCtx, brokers, topic, cfg.Kafka.Workers); err != nil {
		logging.Errorf("[%s] ensure topic warning: %v", component, err)
	}
	cancelEnsure()

	workerCount := cfg.Kafka.Workers
	if workerCount <= 0 {
		workerCount = 1
	}
	group := cfg.Kafka.Group + "-feeder"
	logging.Infof("[%s] consuming %s with group %s (%d workers) into %s", component, topic, group, workerCount, cfg.Redis.Addr)

	// one feeder per worker so connector caches are never shared
	done := make(chan struct{}, workerCount)
	for i := 0; i < workerCount; i++ {
		feeder := marketdata.NewFeeder(client, cfg.MarketData.KeyPrefix, cfg.MarketData.SnapshotTTL.Duration)
		go func() {
			workers.Run(ctx, brokers, topic, group, 1, feeder.Handle)
			done <- struct{}{}
		}()
	}
	for i := 0; i < workerCount; i++ {
		<-done
	}
	logging.Infof("[%s] stopped", component)
}
