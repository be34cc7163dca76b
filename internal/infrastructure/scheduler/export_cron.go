package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kpidash/backend/internal/domain/kpi"
	"github.com/kpidash/backend/internal/domain/report"
	"github.com/kpidash/backend/internal/infrastructure/export"
)

// cronTickerInterval is how often the cron loop checks the wall clock
const cronTickerInterval = time.Minute

// ExportCronConfig configures the daily export run
type ExportCronConfig struct {
	Enabled bool
	// Schedule is "minute hour * * *" in the business timezone
	Schedule string
	Reports  []report.Kind
	Format   export.Format
	// WindowDays is how many business days ending yesterday each run covers.
	// Zero or less exports the whole history.
	WindowDays int
	Pool       SchedulerConfig
}

// DefaultExportCronConfig returns a disabled 02:00 run of the combined report
func DefaultExportCronConfig() ExportCronConfig {
	return ExportCronConfig{
		Schedule:   "0 2 * * *",
		Reports:    []report.Kind{report.KindAll},
		Format:     export.FormatXLSX,
		WindowDays: 30,
		Pool:       DefaultSchedulerConfig(),
	}
}

// ParseCronSchedule extracts hour and minute from "minute hour * * *".
// An empty expression means 02:00.
func ParseCronSchedule(expr string) (hour, minute int, err error) {
	parts := strings.Fields(expr)
	if len(parts) == 0 {
		return 2, 0, nil
	}
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("%w: schedule %q needs minute and hour", ErrInvalidConfig, expr)
	}
	for _, p := range parts[2:] {
		if p != "*" {
			return 0, 0, fmt.Errorf("%w: only daily schedules are supported, got %q", ErrInvalidConfig, expr)
		}
	}
	minute, err = strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: minute must be 0-59, got %q", ErrInvalidConfig, parts[0])
	}
	hour, err = strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour must be 0-23, got %q", ErrInvalidConfig, parts[1])
	}
	return hour, minute, nil
}

// ExportCronScheduler submits the configured exports once a day
type ExportCronScheduler struct {
	config    ExportCronConfig
	hour      int
	minute    int
	zone      kpi.BusinessZone
	scheduler *Scheduler
	logger    *zap.Logger
	now       func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRunOn string
	nextRunAt time.Time
}

// NewExportCronScheduler validates the schedule and builds the scheduler
func NewExportCronScheduler(cfg ExportCronConfig, zone kpi.BusinessZone, executor JobExecutor, logger *zap.Logger) (*ExportCronScheduler, error) {
	hour, minute, err := ParseCronSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if len(cfg.Reports) == 0 {
		return nil, fmt.Errorf("%w: at least one report is required", ErrInvalidConfig)
	}
	for _, k := range cfg.Reports {
		if _, err := report.ParseKind(string(k)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if _, err := export.ParseFormat(string(cfg.Format)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &ExportCronScheduler{
		config:    cfg,
		hour:      hour,
		minute:    minute,
		zone:      zone,
		scheduler: NewScheduler(cfg.Pool, executor, logger),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Start starts the worker pool and the cron loop
func (s *ExportCronScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.calculateNextRunTime(s.now())

	s.wg.Add(1)
	go s.cronLoop(ctx)

	s.logger.Info("Export cron scheduler started",
		zap.Int("cron_hour", s.hour),
		zap.Int("cron_minute", s.minute),
		zap.Time("next_run_at", s.NextRunAt()),
	)
	return nil
}

// Stop stops the cron loop, then the worker pool
func (s *ExportCronScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return s.scheduler.Stop(ctx)
}

// NextRunAt returns the next scheduled run
func (s *ExportCronScheduler) NextRunAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt
}

func (s *ExportCronScheduler) cronLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(cronTickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.now()
			if s.shouldRun(now) {
				s.RunOnce(now)
				s.calculateNextRunTime(now)
			}
		}
	}
}

// shouldRun reports whether now is the scheduled minute of a business day
// that has not run yet
func (s *ExportCronScheduler) shouldRun(now time.Time) bool {
	local := now.In(s.zone.Location())
	if local.Hour() != s.hour || local.Minute() != s.minute {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunOn != s.zone.Day(now)
}

func (s *ExportCronScheduler) calculateNextRunTime(now time.Time) {
	local := now.In(s.zone.Location())
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, local.Location())
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	s.mu.Lock()
	s.nextRunAt = next
	s.mu.Unlock()
}

// ExportRange returns the window a run at now covers: WindowDays business
// days ending yesterday
func (s *ExportCronScheduler) ExportRange(now time.Time) kpi.DateRange {
	yesterday, _ := kpi.AddDays(s.zone.Day(now), -1)
	if s.config.WindowDays <= 0 {
		return kpi.DateRange{EndDate: yesterday}
	}
	start, _ := kpi.AddDays(yesterday, -(s.config.WindowDays - 1))
	return kpi.DateRange{StartDate: start, EndDate: yesterday}
}

// RunOnce submits one job per configured report for the window ending the
// day before now. It returns the number of jobs queued.
func (s *ExportCronScheduler) RunOnce(now time.Time) int {
	s.mu.Lock()
	s.lastRunOn = s.zone.Day(now)
	s.mu.Unlock()

	rng := s.ExportRange(now)
	queued := 0
	for _, kind := range s.config.Reports {
		job := NewJob(kind, s.config.Format, rng, s.config.Pool.RetryAttempts)
		if err := s.scheduler.SubmitJob(job); err != nil {
			s.logger.Error("Failed to submit export job",
				zap.String("report", string(kind)),
				zap.Error(err),
			)
			continue
		}
		queued++
	}
	s.logger.Info("Scheduled exports submitted",
		zap.Int("jobs", queued),
		zap.String("start_date", rng.StartDate),
		zap.String("end_date", rng.EndDate),
	)
	return queued
}
