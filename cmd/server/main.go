package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	reportapp "github.com/kpidash/backend/internal/application/report"
	"github.com/kpidash/backend/internal/domain/kpi"
	"github.com/kpidash/backend/internal/domain/report"
	"github.com/kpidash/backend/internal/infrastructure/config"
	"github.com/kpidash/backend/internal/infrastructure/export"
	csvimport "github.com/kpidash/backend/internal/infrastructure/import"
	"github.com/kpidash/backend/internal/infrastructure/logger"
	"github.com/kpidash/backend/internal/infrastructure/scheduler"
	"github.com/kpidash/backend/internal/infrastructure/storage"
	"github.com/kpidash/backend/internal/infrastructure/telemetry"
	"github.com/kpidash/backend/internal/infrastructure/upstream"
	"github.com/kpidash/backend/internal/interfaces/http/handler"
	"github.com/kpidash/backend/internal/interfaces/http/middleware"
	"github.com/kpidash/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.NewForEnvironment(cfg.App.Env, &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	// Initialize telemetry before anything that creates spans
	providers, err := telemetry.Start(context.Background(), telemetry.Settings{
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		TracesEnabled:     cfg.Telemetry.Enabled,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsEnabled:    cfg.Telemetry.MetricsEnabled,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
		ProfilingEnabled:  cfg.Telemetry.ProfilingEnabled,
		ProfilingServer:   cfg.Telemetry.ProfilingServer,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log = providers.Logs.Bridge(log)

	reportMetrics, err := providers.ReportMetrics()
	if err != nil {
		log.Fatal("Failed to register report metrics", zap.Error(err))
	}

	log.Info("Starting KPI backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	calculator, err := newCalculator(cfg)
	if err != nil {
		log.Fatal("Invalid business configuration", zap.Error(err))
	}

	// Data source: upstream API, or exported files for offline use
	var (
		source  reportapp.DataSource
		gateway handler.MemberGateway
	)
	if cfg.UsesFiles() {
		source = csvimport.NewFileSource(cfg.Data.OrdersFile, cfg.Data.MembersFile, log.Named("files"))
		log.Info("Serving reports from files",
			zap.String("orders", cfg.Data.OrdersFile),
			zap.String("members", cfg.Data.MembersFile),
		)
	} else {
		client, err := upstream.NewClient(upstream.Config{
			BaseURL:          cfg.Upstream.BaseURL,
			Token:            cfg.Upstream.Token,
			Timeout:          cfg.Upstream.Timeout,
			MaxResponseBytes: cfg.Upstream.MaxResponseBytes,
		}, upstream.WithLogger(log.Named("upstream")))
		if err != nil {
			log.Fatal("Failed to create upstream client", zap.Error(err))
		}
		source = client
		gateway = client
		log.Info("Serving reports from upstream API", zap.String("base_url", cfg.Upstream.BaseURL))
	}

	exportStorage, err := newExportStorage(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize export storage", zap.Error(err))
	}

	service := reportapp.NewKPIReportService(source, calculator, log.Named("report"),
		reportapp.WithStorage(exportStorage),
		reportapp.WithMetrics(reportMetrics),
	)

	exportCron, err := newExportCron(cfg, calculator.Zone(), service, log)
	if err != nil {
		log.Fatal("Invalid export schedule", zap.Error(err))
	}
	if exportCron != nil {
		if err := exportCron.Start(context.Background()); err != nil {
			log.Fatal("Failed to start export scheduler", zap.Error(err))
		}
	}

	// Set Gin mode based on environment
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := router.NewEngine(router.EngineConfig{
		CORSAllowOrigins: cfg.HTTP.CORSAllowOrigins,
		CORSAllowMethods: cfg.HTTP.CORSAllowMethods,
		CORSAllowHeaders: cfg.HTTP.CORSAllowHeaders,
		TrustedProxies:   cfg.HTTP.TrustedProxies,
		MaxBodySize:      cfg.HTTP.MaxBodySize,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
	}, router.Handlers{
		System: handler.NewSystemHandler(cfg.App.Name, version),
		KPI:    handler.NewKPIHandler(service),
		Member: handler.NewMemberHandler(gateway),
	}, log)

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if exportCron != nil {
		if err := exportCron.Stop(ctx); err != nil {
			log.Warn("Export scheduler did not stop cleanly", zap.Error(err))
		}
	}

	if err := providers.Shutdown(ctx); err != nil {
		log.Error("Failed to flush telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newCalculator builds the KPI calculator from the business settings
func newCalculator(cfg *config.Config) (*kpi.Calculator, error) {
	zone, err := cfg.Business.Zone()
	if err != nil {
		return nil, err
	}
	pricing, err := cfg.Business.Pricing()
	if err != nil {
		return nil, err
	}
	return kpi.NewCalculator(kpi.WithZone(zone), kpi.WithPricing(pricing)), nil
}

// newExportStorage picks the export backend for the configured driver
func newExportStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (reportapp.ExportStorage, error) {
	switch cfg.Storage.Driver {
	case "s3":
		s3Storage, err := storage.NewS3ExportStorage(&cfg.Storage,
			storage.WithLogger(log.Named("storage")),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
		)
		if err != nil {
			return nil, err
		}
		if err := s3Storage.EnsureBucket(ctx); err != nil {
			log.Warn("Export bucket is not reachable yet", zap.String("bucket", s3Storage.GetBucket()), zap.Error(err))
		}
		log.Info("Exports are published to S3", zap.String("bucket", s3Storage.GetBucket()))
		return s3Storage, nil
	default:
		local, err := storage.NewLocalExportStorage(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		log.Info("Exports are published to local disk", zap.String("dir", local.Root()))
		return local, nil
	}
}

// newExportCron builds the daily export scheduler, or nil when disabled
func newExportCron(cfg *config.Config, zone kpi.BusinessZone, service *reportapp.KPIReportService, log *zap.Logger) (*scheduler.ExportCronScheduler, error) {
	if !cfg.Schedule.Enabled {
		return nil, nil
	}
	kinds := make([]report.Kind, 0, len(cfg.Schedule.Reports))
	for _, r := range cfg.Schedule.Reports {
		kind, err := report.ParseKind(r)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	format, err := export.ParseFormat(cfg.Schedule.Format)
	if err != nil {
		return nil, err
	}

	return scheduler.NewExportCronScheduler(scheduler.ExportCronConfig{
		Enabled:    true,
		Schedule:   cfg.Schedule.Cron,
		Reports:    kinds,
		Format:     format,
		WindowDays: cfg.Schedule.WindowDays,
		Pool: scheduler.SchedulerConfig{
			MaxConcurrentJobs: cfg.Schedule.Workers,
			JobTimeout:        cfg.Schedule.JobTimeout,
			RetryAttempts:     cfg.Schedule.RetryAttempts,
			RetryDelay:        cfg.Schedule.RetryDelay,
		},
	}, zone, reportapp.NewScheduledExportExecutor(service, log.Named("schedule")), log.Named("schedule"))
}
