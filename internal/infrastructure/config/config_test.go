package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "kpi-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "+09:00", cfg.Business.Timezone)
		assert.Equal(t, "1800", cfg.Business.PricePerCup)
		assert.Equal(t, "local", cfg.Storage.Driver)
		assert.Equal(t, 15*time.Minute, cfg.Storage.PresignExpiration)
		assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	})

	t.Run("loads values from environment variables with KPI prefix", func(t *testing.T) {
		t.Setenv("KPI_APP_PORT", "9000")
		t.Setenv("KPI_UPSTREAM_BASE_URL", "https://api.example.com")
		t.Setenv("KPI_UPSTREAM_TOKEN", "secret")
		t.Setenv("KPI_UPSTREAM_TIMEOUT", "5s")
		t.Setenv("KPI_BUSINESS_TIMEZONE", "UTC")
		t.Setenv("KPI_BUSINESS_PRICE_PER_CUP", "2000")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "https://api.example.com", cfg.Upstream.BaseURL)
		assert.Equal(t, "secret", cfg.Upstream.Token)
		assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
		assert.Equal(t, "UTC", cfg.Business.Timezone)

		pricing, err := cfg.Business.Pricing()
		require.NoError(t, err)
		assert.True(t, pricing.PricePerCup.Equal(decimal.NewFromInt(2000)))
	})

	t.Run("rejects an invalid timezone", func(t *testing.T) {
		t.Setenv("KPI_BUSINESS_TIMEZONE", "+25:00")
		_, err := Load()
		assert.ErrorContains(t, err, "business.timezone")
	})

	t.Run("rejects an unknown storage driver", func(t *testing.T) {
		t.Setenv("KPI_STORAGE_DRIVER", "ftp")
		_, err := Load()
		assert.ErrorContains(t, err, "storage.driver")
	})

	t.Run("s3 driver requires a bucket", func(t *testing.T) {
		t.Setenv("KPI_STORAGE_DRIVER", "s3")
		_, err := Load()
		assert.ErrorContains(t, err, "storage.bucket")
	})

	t.Run("production requires the upstream URL", func(t *testing.T) {
		t.Setenv("KPI_APP_ENV", "production")
		_, err := Load()
		assert.ErrorContains(t, err, "upstream.base_url")
	})

	t.Run("production accepts an order file instead", func(t *testing.T) {
		t.Setenv("KPI_APP_ENV", "production")
		t.Setenv("KPI_DATA_ORDERS_FILE", "/data/orders.csv")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.UsesFiles())
		assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodySize)
	})

	t.Run("upstream wins over files", func(t *testing.T) {
		t.Setenv("KPI_DATA_ORDERS_FILE", "/data/orders.csv")
		t.Setenv("KPI_UPSTREAM_BASE_URL", "https://api.example.com")
		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.UsesFiles())
	})

	t.Run("telemetry defaults follow the app name", func(t *testing.T) {
		t.Setenv("KPI_APP_NAME", "kpi-prod")
		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.Telemetry.Enabled)
		assert.Equal(t, "kpi-prod", cfg.Telemetry.ServiceName)
		assert.Equal(t, "localhost:4317", cfg.Telemetry.CollectorEndpoint)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
		assert.Equal(t, time.Minute, cfg.Telemetry.MetricsInterval)
	})

	t.Run("rejects an out of range sampling ratio", func(t *testing.T) {
		t.Setenv("KPI_TELEMETRY_SAMPLING_RATIO", "1.5")
		_, err := Load()
		assert.ErrorContains(t, err, "telemetry.sampling_ratio")
	})

	t.Run("schedule defaults", func(t *testing.T) {
		t.Setenv("KPI_SCHEDULE_ENABLED", "true")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Schedule.Enabled)
		assert.Equal(t, "0 2 * * *", cfg.Schedule.Cron)
		assert.Equal(t, []string{"all"}, cfg.Schedule.Reports)
		assert.Equal(t, "xlsx", cfg.Schedule.Format)
		assert.Equal(t, 2, cfg.Schedule.Workers)
	})

	t.Run("rejects a negative schedule window", func(t *testing.T) {
		t.Setenv("KPI_SCHEDULE_WINDOW_DAYS", "-1")
		_, err := Load()
		assert.ErrorContains(t, err, "schedule.window_days")
	})

	t.Run("profiling requires a server", func(t *testing.T) {
		t.Setenv("KPI_TELEMETRY_PROFILING_ENABLED", "true")
		_, err := Load()
		assert.ErrorContains(t, err, "telemetry.profiling_server")
	})
}

func TestLoadFile_CupCosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[business]
timezone = "+0900"
price_per_cup = 1800
default_cup_cost = "900"

[[business.cup_costs]]
product = "Americano"
cost = 600

[[business.cup_costs]]
product = "Protein Shake"
cost = "1200.50"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, cfg.Business.CupCosts, 2)

	pricing, err := cfg.Business.Pricing()
	require.NoError(t, err)
	assert.True(t, pricing.Costs.UnitCost("Americano").Equal(decimal.NewFromInt(600)))
	assert.True(t, pricing.Costs.UnitCost("Protein Shake").Equal(decimal.RequireFromString("1200.5")))
	assert.True(t, pricing.Costs.UnitCost("Latte").Equal(decimal.NewFromInt(900)))

	zone, err := cfg.Business.Zone()
	require.NoError(t, err)
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, zone.Location()).Zone()
	assert.Equal(t, 9*3600, offset)
}

func TestBusinessConfig_Pricing_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  BusinessConfig
	}{
		{"bad price", BusinessConfig{PricePerCup: "abc", DefaultCupCost: "0"}},
		{"negative price", BusinessConfig{PricePerCup: "-1", DefaultCupCost: "0"}},
		{"bad default cost", BusinessConfig{PricePerCup: "1800", DefaultCupCost: "x"}},
		{"missing product", BusinessConfig{PricePerCup: "1800", DefaultCupCost: "0", CupCosts: []CupCost{{Cost: "1"}}}},
		{"bad cost", BusinessConfig{PricePerCup: "1800", DefaultCupCost: "0", CupCosts: []CupCost{{Product: "A", Cost: "?"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Pricing()
			assert.Error(t, err)
		})
	}
}
