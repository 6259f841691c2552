package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/crossarb/internal/cache"
	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/kafka"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/models"
	"github.com/hetulpatel/crossarb/internal/notify"
	"github.com/hetulpatel/crossarb/internal/stage"
	"github.com/hetulpatel/crossarb/internal/workers"
)

const component = "arb-notifier"

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

	var sender notify.Sender = notify.LogSender{Logf: logging.Infof}
	if cfg.Telegram.Token != "" {
		sender = notify.NewTelegramSender(cfg.Telegram.Token, cfg.Telegram.ChatID)
	} else {
		logging.Infof("[%s] no telegram token, messages go to the log", component)
	}

	var memory cache.NotifiedCache
	if cfg.Redis.Addr != "" {
		memory, err = cache.NewRedisNotifiedCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.NotifiedTTL.Duration, "crossarb:notified")
		if err != nil {
			logging.Fatalf("[%s] redis: %v", component, err)
		}
		defer memory.Close()
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

	chain := cfg.NotifierChain()
	dispatcher := stage.NewDispatcher(stage.DispatcherConfig[map[string]string]{
		Name:      component,
		Publisher: notify.NewAnnouncer(sender, memory, nil),
		Clone:     notify.CloneDigest,
	})
	handler := workers.IntoStage(models.DecodeRecords, workers.StagerFunc[[]models.Record](func(records []models.Record) {
		digest := notify.Digest(records, chain)
		if dispatcher.SetData(digest) {
			logging.Debugf("[%s] digest changed: %d symbols", component, len(digest))
		}
	}))

	group := cfg.Kafka.Group + "-notifier"
	logging.Infof("[%s] consuming %s with group %s via %s", component, cfg.Kafka.OpportunitiesTopic, group, sender.Name())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		workers.Run(ctx, brokers, cfg.Kafka.OpportunitiesTopic, group, 1, handler)
		return nil
	})
	g.Go(func() error {
		dispatcher.Run(ctx, cfg.Pipeline.DispatchInterval.Duration)
		return nil
	})
	_ = g.Wait()
	logging.Infof("[%s] stopped", component)
}
