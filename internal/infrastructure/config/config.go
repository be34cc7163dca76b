package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/kpidash/backend/internal/domain/kpi"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Upstream  UpstreamConfig
	Data      DataConfig
	Business  BusinessConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
	Schedule  ScheduleConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// UpstreamConfig holds the dashboard REST API settings
type UpstreamConfig struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	MaxResponseBytes int64
}

// DataConfig points at exported order and member files. It is used when no
// upstream base URL is configured.
type DataConfig struct {
	OrdersFile  string
	MembersFile string
}

// UsesFiles reports whether reports are served from local files
func (c *Config) UsesFiles() bool {
	return c.Upstream.BaseURL == "" && c.Data.OrdersFile != ""
}

// CupCost is the unit cost of one product
type CupCost struct {
	Product string `mapstructure:"product"`
	Cost    string `mapstructure:"cost"`
}

// BusinessConfig holds the KPI business rules
type BusinessConfig struct {
	Timezone       string // "+09:00", "+0900" or an IANA zone name
	PricePerCup    string
	DefaultCupCost string
	CupCosts       []CupCost
}

// StorageConfig holds export storage settings
type StorageConfig struct {
	Driver            string // local, s3
	Dir               string // local export directory
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
}

// TelemetryConfig holds OpenTelemetry and profiling configuration
type TelemetryConfig struct {
	Enabled           bool    // Export traces
	CollectorEndpoint string  // OTLP gRPC endpoint
	SamplingRatio     float64 // 0.0 to 1.0
	ServiceName       string
	Insecure          bool
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	ProfilingEnabled  bool
	ProfilingServer   string // Pyroscope server address
}

// ScheduleConfig holds the daily export publishing settings
type ScheduleConfig struct {
	Enabled       bool
	Cron          string   // "minute hour * * *" in the business timezone
	Reports       []string // report kinds
	Format        string   // csv, xlsx
	WindowDays    int      // business days ending yesterday, 0 for all history
	Workers       int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with KPI_ prefix (e.g., KPI_UPSTREAM_TOKEN)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return fromViper(v)
}

// LoadFile loads configuration from an explicit file path plus environment
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("KPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Upstream: UpstreamConfig{
			BaseURL:          v.GetString("upstream.base_url"),
			Token:            v.GetString("upstream.token"),
			Timeout:          v.GetDuration("upstream.timeout"),
			MaxResponseBytes: v.GetInt64("upstream.max_response_bytes"),
		},
		Data: DataConfig{
			OrdersFile:  v.GetString("data.orders_file"),
			MembersFile: v.GetString("data.members_file"),
		},
		Business: BusinessConfig{
			Timezone:       v.GetString("business.timezone"),
			PricePerCup:    v.GetString("business.price_per_cup"),
			DefaultCupCost: v.GetString("business.default_cup_cost"),
		},
		Storage: StorageConfig{
			Driver:            v.GetString("storage.driver"),
			Dir:               v.GetString("storage.dir"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
		},
		Schedule: ScheduleConfig{
			Enabled:       v.GetBool("schedule.enabled"),
			Cron:          v.GetString("schedule.cron"),
			Reports:       v.GetStringSlice("schedule.reports"),
			Format:        v.GetString("schedule.format"),
			WindowDays:    v.GetInt("schedule.window_days"),
			Workers:       v.GetInt("schedule.workers"),
			JobTimeout:    v.GetDuration("schedule.job_timeout"),
			RetryAttempts: v.GetInt("schedule.retry_attempts"),
			RetryDelay:    v.GetDuration("schedule.retry_delay"),
		},
	}

	// Product names are case sensitive, so cup costs are a list of tables
	// rather than a map whose keys viper would lowercase.
	if err := v.UnmarshalKey("business.cup_costs", &cfg.Business.CupCosts); err != nil {
		return nil, fmt.Errorf("error reading business.cup_costs: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "kpi-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 30 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 120 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 30 * time.Second
	}
	if cfg.Upstream.MaxResponseBytes == 0 {
		cfg.Upstream.MaxResponseBytes = 32 << 20
	}
	if cfg.Business.Timezone == "" {
		cfg.Business.Timezone = kpi.DefaultZoneOffset
	}
	if cfg.Business.PricePerCup == "" {
		cfg.Business.PricePerCup = kpi.DefaultPricePerCup.String()
	}
	if cfg.Business.DefaultCupCost == "" {
		cfg.Business.DefaultCupCost = "0"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "local"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "./exports"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}

	// Schedule defaults: 02:00 daily, the combined report as xlsx
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 2 * * *"
	}
	if len(cfg.Schedule.Reports) == 0 {
		cfg.Schedule.Reports = []string{"all"}
	}
	if cfg.Schedule.Format == "" {
		cfg.Schedule.Format = "xlsx"
	}
	if cfg.Schedule.Workers == 0 {
		cfg.Schedule.Workers = 2
	}
	if cfg.Schedule.JobTimeout == 0 {
		cfg.Schedule.JobTimeout = 10 * time.Minute
	}
	if cfg.Schedule.RetryDelay == 0 {
		cfg.Schedule.RetryDelay = 5 * time.Minute
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if _, err := c.Business.Zone(); err != nil {
		return fmt.Errorf("business.timezone: %w", err)
	}
	if _, err := c.Business.Pricing(); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("storage.driver must be local or s3, got %q", c.Storage.Driver)
	}

	if c.Upstream.Timeout < 0 {
		return fmt.Errorf("upstream.timeout cannot be negative")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Schedule.WindowDays < 0 || c.Schedule.RetryAttempts < 0 {
		return fmt.Errorf("schedule.window_days and schedule.retry_attempts cannot be negative")
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.ProfilingServer == "" {
		return fmt.Errorf("telemetry.profiling_server is required when profiling is enabled")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Upstream.BaseURL == "" && c.Data.OrdersFile == "" {
			return fmt.Errorf("upstream.base_url or data.orders_file is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// Zone returns the business timezone
func (b BusinessConfig) Zone() (kpi.BusinessZone, error) {
	return kpi.NewBusinessZone(b.Timezone)
}

// Pricing returns the revenue and cost model
func (b BusinessConfig) Pricing() (kpi.Pricing, error) {
	price, err := decimal.NewFromString(b.PricePerCup)
	if err != nil {
		return kpi.Pricing{}, fmt.Errorf("business.price_per_cup: %w", err)
	}
	if price.IsNegative() {
		return kpi.Pricing{}, fmt.Errorf("business.price_per_cup cannot be negative")
	}
	def, err := decimal.NewFromString(b.DefaultCupCost)
	if err != nil {
		return kpi.Pricing{}, fmt.Errorf("business.default_cup_cost: %w", err)
	}

	units := make(map[string]decimal.Decimal, len(b.CupCosts))
	for i, cc := range b.CupCosts {
		if strings.TrimSpace(cc.Product) == "" {
			return kpi.Pricing{}, fmt.Errorf("business.cup_costs[%d]: product is required", i)
		}
		cost, err := decimal.NewFromString(cc.Cost)
		if err != nil {
			return kpi.Pricing{}, fmt.Errorf("business.cup_costs[%d] (%s): %w", i, cc.Product, err)
		}
		units[cc.Product] = cost
	}

	return kpi.Pricing{
		PricePerCup: price,
		Costs:       kpi.CostTable{Units: units, Default: def},
	}, nil
}

// IsProduction reports whether the app runs in production
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}
