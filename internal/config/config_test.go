package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/profitability"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crossarb.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 5*time.Second, cfg.Pipeline.TickInterval.Duration)
	require.Equal(t, 30*time.Second, cfg.Pipeline.StaleAfter.Duration)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[kafka]
brokers = ["k1:9092", "k2:9092"]
candidates_topic = "cands"

[pipeline]
tick_interval = "2s"
stale_after = "1m"

[[filters]]
type = "minimal_profit"
value = 1.5

[[filters]]
type = "maximal_percent"
value = 40.0

[telegram]
minimal_percent = 0.5
`)
	t.Setenv("CROSSARB_KAFKA_GROUP", "grp")
	t.Setenv("CROSSARB_PIPELINE_DISPATCH_INTERVAL", "750ms")
	t.Setenv("CROSSARB_MARKETDATA_VENUES", "mexc, gate")
	t.Setenv("CROSSARB_REDIS_ADDR", "redis:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "cands", cfg.Kafka.CandidatesTopic)
	require.Equal(t, "arb.opportunities", cfg.Kafka.OpportunitiesTopic)
	require.Equal(t, "grp", cfg.Kafka.Group)
	require.Equal(t, 2*time.Second, cfg.Pipeline.TickInterval.Duration)
	require.Equal(t, 750*time.Millisecond, cfg.Pipeline.DispatchInterval.Duration)
	require.Equal(t, time.Minute, cfg.Pipeline.StaleAfter.Duration)
	require.Equal(t, []string{"mexc", "gate"}, cfg.MarketData.Venues)

	chain, err := cfg.FilterChain()
	require.NoError(t, err)
	require.Equal(t, profitability.Chain{
		{Kind: profitability.MinimalProfit, Value: 1.5},
		{Kind: profitability.MaximalPercent, Value: 40},
	}, chain)

	notifier := cfg.NotifierChain()
	require.Len(t, notifier, 3)
	require.Equal(t, 0.5, notifier[1].Value)
	require.Equal(t, 100.0, notifier[2].Value)
}

func TestLoadDotEnvFeedsDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	require.NoError(t, os.Unsetenv("KAFKA_BROKERS"))
	t.Setenv("CROSSARB_KAFKA_BROKERS", "")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("KAFKA_BROKERS=envfile:9092\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, []string{"envfile:9092"}, cfg.Kafka.Brokers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidateRejectsUnknownFilter(t *testing.T) {
	path := writeConfig(t, `
[[filters]]
type = "minimal_volume"
value = 1.0
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = cfg.FilterChain()
	var cfgErr *profitability.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	require.ErrorIs(t, err, profitability.ErrUnknownFilter)
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsFilterWithoutValue(t *testing.T) {
	cfg := Defaults()
	cfg.Filters = []profitability.RawFilter{{Type: "minimal_percent"}}
	_, err := cfg.FilterChain()
	require.ErrorIs(t, err, profitability.ErrMissingValue)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Kafka.Brokers = nil
	cfg.Pipeline.StaleAfter.Duration = 0
	cfg.MarketData.Venues = []string{"mexc"}
	cfg.Telegram.Token = "t"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"log_level", "kafka.brokers", "stale_after", "redis.addr", "chat_id"} {
		require.Contains(t, err.Error(), want)
	}
}
