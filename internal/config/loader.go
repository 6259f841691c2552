package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load loads .env if present, reads the TOML file at path on top of Defaults
// and applies CROSSARB_* overrides. An empty path skips the file. The result
// is not validated; call Validate.
func Load(path string) (*Config, error) {
	// .env is optional. It goes first because Defaults reads KAFKA_BROKERS.
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.LogLevel, "CROSSARB_LOG_LEVEL")

	setStringSlice(&cfg.Kafka.Brokers, "CROSSARB_KAFKA_BROKERS")
	setStr(&cfg.Kafka.CandidatesTopic, "CROSSARB_KAFKA_CANDIDATES_TOPIC")
	setStr(&cfg.Kafka.OpportunitiesTopic, "CROSSARB_KAFKA_OPPORTUNITIES_TOPIC")
	setStr(&cfg.Kafka.Group, "CROSSARB_KAFKA_GROUP")
	setInt(&cfg.Kafka.Workers, "CROSSARB_KAFKA_WORKERS")

	setDuration(&cfg.Pipeline.TickInterval, "CROSSARB_PIPELINE_TICK_INTERVAL")
	setDuration(&cfg.Pipeline.DispatchInterval, "CROSSARB_PIPELINE_DISPATCH_INTERVAL")
	setDuration(&cfg.Pipeline.StaleAfter, "CROSSARB_PIPELINE_STALE_AFTER")

	setStringSlice(&cfg.MarketData.Venues, "CROSSARB_MARKETDATA_VENUES")
	setStr(&cfg.MarketData.KeyPrefix, "CROSSARB_MARKETDATA_KEY_PREFIX")
	setDuration(&cfg.MarketData.MaxAge, "CROSSARB_MARKETDATA_MAX_AGE")
	setDuration(&cfg.MarketData.FetchTimeout, "CROSSARB_MARKETDATA_FETCH_TIMEOUT")
	setStr(&cfg.MarketData.FeedTopic, "CROSSARB_MARKETDATA_FEED_TOPIC")
	setDuration(&cfg.MarketData.SnapshotTTL, "CROSSARB_MARKETDATA_SNAPSHOT_TTL")

	setStr(&cfg.Redis.Addr, "CROSSARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CROSSARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CROSSARB_REDIS_DB")
	setDuration(&cfg.Redis.NotifiedTTL, "CROSSARB_REDIS_NOTIFIED_TTL")

	setStr(&cfg.Telegram.Token, "CROSSARB_TELEGRAM_TOKEN")
	setStr(&cfg.Telegram.ChatID, "CROSSARB_TELEGRAM_CHAT_ID")
	setFloat64(&cfg.Telegram.MinimalProfit, "CROSSARB_TELEGRAM_MINIMAL_PROFIT")
	setFloat64(&cfg.Telegram.MinimalPercent, "CROSSARB_TELEGRAM_MINIMAL_PERCENT")
	setFloat64(&cfg.Telegram.MaximalPercent, "CROSSARB_TELEGRAM_MAXIMAL_PERCENT")

	setStr(&cfg.SQLite.Path, "CROSSARB_SQLITE_PATH")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
