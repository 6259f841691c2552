package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/kafka"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/marketdata"
	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/pipeline"
	"github.com/hetulpatel/crossarb/internal/queue"
	"github.com/hetulpatel/crossarb/internal/stage"
	"github.com/hetulpatel/crossarb/internal/workers"
)

const component = "arb-pipeline"

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

	chain, err := cfg.FilterChain()
	if err != nil {
		logging.Fatalf("[%s] %v", component, err)
	}

	brokers := cfg.Kafka.Brokers
	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Fatalf("[%s] wait for broker: %v", component, err)
	}
	cancel()

	topics := map[string]int{
		cfg.Kafka.CandidatesTopic:    cfg.Kafka.Workers,
		cfg.Kafka.OpportunitiesTopic: 1,
	}
	for topic, partitions := range topics {
		ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
		if err := kafka.EnsureTopic(ensureCtx, brokers, topic, partitions); err != nil {
			logging.Errorf("[%s] ensure topic %s warning: %v", component, topic, err)
		}
		cancelEnsure()
	}

	writer := kafka.NewWriter(brokers, cfg.Kafka.OpportunitiesTopic)
	defer writer.Close()

	receiver := stage.NewReceiver(models.CloneCandidates, nil)
	dispatcher := stage.NewDispatcher(stage.DispatcherConfig[[]models.Record]{
		Name:      component + "-dispatcher",
		Publisher: queue.NewRecordPublisher(writer, component),
		Clone:     models.CloneRecords,
		Equal:     models.SameRecords,
	})

	var enricher pipeline.Enricher
	if len(cfg.MarketData.Venues) > 0 {
		client, err := marketdata.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logging.Fatalf("[%s] redis: %v", component, err)
		}
		defer client.Close()

		registry := marketdata.NewRegistry()
		for _, venue := range cfg.MarketData.Venues {
			registry.Register(venue, marketdata.NewRedisConnector(client, venue, cfg.MarketData.KeyPrefix, cfg.MarketData.MaxAge.Duration))
		}
		enricher = marketdata.NewEnricher(registry, cfg.MarketData.FetchTimeout.Duration)
		logging.Infof("[%s] order book enrichment enabled for %v", component, registry.Venues())
	}

	orch := pipeline.New(pipeline.Config{
		TickInterval: cfg.Pipeline.TickInterval.Duration,
		StaleAfter:   cfg.Pipeline.StaleAfter.Duration,
		Filters:      chain,
	}, receiver, dispatcher, enricher)

	logging.Infof("[%s] %s -> %s (group %s, %d workers)", component, cfg.Kafka.CandidatesTopic, cfg.Kafka.OpportunitiesTopic, cfg.Kafka.Group, cfg.Kafka.Workers)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		workers.Run(ctx, brokers, cfg.Kafka.CandidatesTopic, cfg.Kafka.Group, cfg.Kafka.Workers,
			workers.IntoStage(models.DecodeCandidates, receiver))
		return nil
	})
	g.Go(func() error {
		orch.Run(ctx)
		return nil
	})
	g.Go(func() error {
		dispatcher.Run(ctx, cfg.Pipeline.DispatchInterval.Duration)
		return nil
	})
	if err := g.Wait(); err != nil {
		logging.Errorf("[%s] %v", component, err)
	}
	logging.Infof("[%s] stopped", component)
}
