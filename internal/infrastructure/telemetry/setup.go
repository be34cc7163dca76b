package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Settings configures every telemetry signal from one place
type Settings struct {
	ServiceName       string
	ServiceVersion    string
	CollectorEndpoint string
	Insecure          bool
	TracesEnabled     bool
	SamplingRatio     float64
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	ProfilingEnabled  bool
	ProfilingServer   string
}

// Providers holds the started telemetry pipelines
type Providers struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Profiler *Profiler
}

// Start starts every configured pipeline. Pipelines started before a failure
// are shut down.
func Start(ctx context.Context, s Settings, logger *zap.Logger) (*Providers, error) {
	p := &Providers{}
	var err error

	p.Profiler, err = NewProfiler(ProfilerConfig{
		Enabled:         s.ProfilingEnabled,
		ServerAddress:   s.ProfilingServer,
		ApplicationName: s.ServiceName,
	}, logger)
	if err != nil {
		return nil, err
	}

	p.Tracer, err = NewTracerProvider(ctx, Config{
		Enabled:           s.TracesEnabled,
		CollectorEndpoint: s.CollectorEndpoint,
		SamplingRatio:     s.SamplingRatio,
		ServiceName:       s.ServiceName,
		ServiceVersion:    s.ServiceVersion,
		Insecure:          s.Insecure,
	}, logger)
	if err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}
	if p.Profiler.IsEnabled() {
		p.Tracer.EnableSpanProfiles()
	}

	p.Meter, err = NewMeterProvider(ctx, MetricsConfig{
		Enabled:           s.MetricsEnabled,
		CollectorEndpoint: s.CollectorEndpoint,
		ExportInterval:    s.MetricsInterval,
		ServiceName:       s.ServiceName,
		ServiceVersion:    s.ServiceVersion,
		Insecure:          s.Insecure,
	}, logger)
	if err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}

	p.Logs, err = NewLoggerProvider(ctx, LogsConfig{
		Enabled:           s.LogsEnabled,
		CollectorEndpoint: s.CollectorEndpoint,
		ServiceName:       s.ServiceName,
		ServiceVersion:    s.ServiceVersion,
		Insecure:          s.Insecure,
	}, logger)
	if err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}
	return p, nil
}

// ReportMetrics registers the report instruments on the meter provider
func (p *Providers) ReportMetrics() (*ReportMetrics, error) {
	return NewReportMetrics(p.Meter.Meter(TracerName))
}

// Shutdown stops pipelines in reverse start order. Nil pipelines are skipped.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.Logs != nil {
		errs = append(errs, p.Logs.Shutdown(ctx))
	}
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}
	if p.Profiler != nil {
		errs = append(errs, p.Profiler.Stop())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}
