package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/kafka"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/stage"
	sqlstore "github.com/hetulpatel/crossarb/internal/storage/sqlite"
	"github.com/hetulpatel/crossarb/internal/workers"
)

const component = "arb-recorder"

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

	store, err := sqlstore.Open(cfg.SQLite.Path)
	if err != nil {
		logging.Fatalf("[%s] open sqlite: %v", component, err)
	}
	defer store.Close()
	if err := store.CreateTables(ctx); err != nil {
		logging.Fatalf("[%s] create tables: %v", component, err)
	}

	brokers := cfg.Kafka.Brokers
	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Fatalf("[%s] wait for broker: %v", component, err)
	}
	cancel()

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopic(ensureCtx, brokers, cfg.Kafka.OpportunitiesTopic, 1); err != nil {
		logging.Errorf("[%s] ensure topic warning: %v", component, err)
	}
	cancelEnsure()

	dispatcher := stage.NewDispatcher(stage.DispatcherConfig[[]models.Record]{
		Name: component,
		Publisher: stage.PublisherFunc[[]models.Record](func(ctx context.Context, records []models.Record) error {
			batchID := uuid.NewString()
			if err := store.InsertOpportunities(ctx, batchID, records); err != nil {
				return err
			}
			logging.Infof("[%s] stored batch %s (%d records)", component, batchID, len(records))
			return nil
		}),
		Clone: models.CloneRecords,
		Equal: models.SameRecords,
	})

	group := cfg.Kafka.Group + "-recorder"
	logging.Infof("[%s] consuming %s with group %s into %s", component, cfg.Kafka.OpportunitiesTopic, group, store.Path())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		workers.Run(ctx, brokers, cfg.Kafka.OpportunitiesTopic, group, 1,
			workers.IntoStage(models.DecodeRecords, workers.StagerFunc[[]models.Record](func(records []models.Record) {
				dispatcher.SetData(records)
			})))
		return nil
	})
	g.Go(func() error {
		dispatcher.Run(ctx, cfg.Pipeline.DispatchInterval.Duration)
		return nil
	})
	_ = g.Wait()
	logging.Infof("[%s] stopped", component)
}
