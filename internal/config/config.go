// Package config defines the configuration shared by the crossarb binaries
// and its validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/kafka"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/profitability"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by CROSSARB_* environment variables.
type Config struct {
	LogLevel   string                    `toml:"log_level"`
	Kafka      KafkaConfig               `toml:"kafka"`
	Pipeline   PipelineConfig            `toml:"pipeline"`
	Filters    []profitability.RawFilter `toml:"filters"`
	MarketData MarketDataConfig          `toml:"marketdata"`
	Redis      RedisConfig               `toml:"redis"`
	Telegram   TelegramConfig            `toml:"telegram"`
	SQLite     SQLiteConfig              `toml:"sqlite"`
}

// KafkaConfig names the topics and consumer group. Workers is the number of
// group readers per consuming binary and the partition count used when the
// candidates and feed topics are created; readers beyond an existing topic's
// partitions sit idle.
type KafkaConfig struct {
	Brokers            []string `toml:"brokers"`
	CandidatesTopic    string   `toml:"candidates_topic"`
	OpportunitiesTopic string   `toml:"opportunities_topic"`
	Group              string   `toml:"group"`
	Workers            int      `toml:"workers"`
}

// PipelineConfig holds the orchestrator timing.
type PipelineConfig struct {
	TickInterval     duration `toml:"tick_interval"`
	DispatchInterval duration `toml:"dispatch_interval"`
	StaleAfter       duration `toml:"stale_after"`
}

// MarketDataConfig enables order book enrichment from Redis snapshots for the
// listed venues. The feeder fills those snapshots from FeedTopic.
type MarketDataConfig struct {
	Venues       []string `toml:"venues"`
	KeyPrefix    string   `toml:"key_prefix"`
	MaxAge       duration `toml:"max_age"`
	FetchTimeout duration `toml:"fetch_timeout"`
	FeedTopic    string   `toml:"feed_topic"`
	SnapshotTTL  duration `toml:"snapshot_ttl"`
}

type RedisConfig struct {
	Addr        string   `toml:"addr"`
	Password    string   `toml:"password"`
	DB          int      `toml:"db"`
	NotifiedTTL duration `toml:"notified_ttl"`
}

// TelegramConfig configures the notifier and its own thresholds.
type TelegramConfig struct {
	Token          string  `toml:"token"`
	ChatID         string  `toml:"chat_id"`
	MinimalProfit  float64 `toml:"minimal_profit"`
	MinimalPercent float64 `toml:"minimal_percent"`
	MaximalPercent float64 `toml:"maximal_percent"`
}

type SQLiteConfig struct {
	Path string `toml:"path"`
}

// duration wraps time.Duration so TOML strings like "5s" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible defaults.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Kafka: KafkaConfig{
			Brokers:            kafka.Brokers(),
			CandidatesTopic:    kafka.DefaultCandidatesTopic,
			OpportunitiesTopic: kafka.DefaultOpportunitiesTopic,
			Group:              "crossarb",
			Workers:            1,
		},
		Pipeline: PipelineConfig{
			TickInterval:     duration{5 * time.Second},
			DispatchInterval: duration{5 * time.Second},
			StaleAfter:       duration{30 * time.Second},
		},
		MarketData: MarketDataConfig{
			KeyPrefix:    "orderbook",
			MaxAge:       duration{30 * time.Second},
			FetchTimeout: duration{2 * time.Second},
			FeedTopic:    kafka.DefaultOrderBooksTopic,
			SnapshotTTL:  duration{5 * time.Minute},
		},
		Redis: RedisConfig{
			NotifiedTTL: duration{24 * time.Hour},
		},
		Telegram: TelegramConfig{
			MaximalPercent: 100,
		},
		SQLite: SQLiteConfig{
			Path: "data/crossarb.db",
		},
	}
}

// Validate checks the configuration for obvious mistakes and returns every
// problem at once.
func (c *Config) Validate() error {
	var errs []string

	if !logging.KnownLevel(c.LogLevel) {
		errs = append(errs, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, "kafka.brokers must not be empty")
	}
	if c.Kafka.CandidatesTopic == "" {
		errs = append(errs, "kafka.candidates_topic is required")
	}
	if c.Kafka.OpportunitiesTopic == "" {
		errs = append(errs, "kafka.opportunities_topic is required")
	}
	if c.Kafka.CandidatesTopic != "" && c.Kafka.CandidatesTopic == c.Kafka.OpportunitiesTopic {
		errs = append(errs, "kafka.candidates_topic and kafka.opportunities_topic must differ")
	}
	if c.Pipeline.TickInterval.Duration <= 0 {
		errs = append(errs, "pipeline.tick_interval must be positive")
	}
	if c.Pipeline.DispatchInterval.Duration <= 0 {
		errs = append(errs, "pipeline.dispatch_interval must be positive")
	}
	if c.Pipeline.StaleAfter.Duration <= 0 {
		errs = append(errs, "pipeline.stale_after must be positive")
	}
	if len(c.MarketData.Venues) > 0 && c.Redis.Addr == "" {
		errs = append(errs, "marketdata.venues requires redis.addr")
	}
	if c.Telegram.MaximalPercent <= c.Telegram.MinimalPercent {
		errs = append(errs, "telegram.maximal_percent must be greater than telegram.minimal_percent")
	}
	if (c.Telegram.Token == "") != (c.Telegram.ChatID == "") {
		errs = append(errs, "telegram.token and telegram.chat_id must be set together")
	}
	if _, err := c.FilterChain(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// FilterChain parses the pipeline's [[filters]] entries.
func (c *Config) FilterChain() (profitability.Chain, error) {
	chain, err := profitability.ParseChain(c.Filters)
	if err != nil {
		var cfgErr *profitability.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("filters: %w", cfgErr)
		}
		return nil, err
	}
	return chain, nil
}

// NotifierChain builds the notifier's thresholds as a filter chain.
func (c *Config) NotifierChain() profitability.Chain {
	t := c.Telegram
	return profitability.Chain{
		{Kind: profitability.MinimalProfit, Value: t.MinimalProfit},
		{Kind: profitability.MinimalPercent, Value: t.MinimalPercent},
		{Kind: profitability.MaximalPercent, Value: t.MaximalPercent},
	}
}
