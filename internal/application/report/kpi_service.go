// Package report runs KPI reports over fresh order and member snapshots and
// turns them into downloadable files.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kpidash/backend/internal/domain/kpi"
	"github.com/kpidash/backend/internal/domain/report"
	"github.com/kpidash/backend/internal/infrastructure/export"
	"github.com/kpidash/backend/internal/infrastructure/logger"
	"github.com/kpidash/backend/internal/infrastructure/storage"
	"github.com/kpidash/backend/internal/infrastructure/telemetry"
)

// Service errors
var (
	ErrExportFailed         = errors.New("export failed")
	ErrStorageNotConfigured = errors.New("export storage is not configured")
)

// DataSource provides order and member snapshots. Implementations must not
// cache between calls: members can change through refunds and syncs.
type DataSource interface {
	ListOrders(ctx context.Context) ([]kpi.Order, error)
	ListMembers(ctx context.Context) ([]kpi.Member, error)
}

// ExportStorage stores rendered exports and hands out download links
type ExportStorage interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
}

// KPIReportService builds KPI reports
type KPIReportService struct {
	source     DataSource
	calculator *kpi.Calculator
	storage    ExportStorage
	metrics    *telemetry.ReportMetrics
	logger     *zap.Logger
	now        func() time.Time
}

// ServiceOption configures a KPIReportService
type ServiceOption func(*KPIReportService)

// WithStorage enables publishing exports
func WithStorage(s ExportStorage) ServiceOption {
	return func(svc *KPIReportService) {
		svc.storage = s
	}
}

// WithMetrics records report runs and export sizes
func WithMetrics(m *telemetry.ReportMetrics) ServiceOption {
	return func(svc *KPIReportService) {
		svc.metrics = m
	}
}

// WithClock replaces the clock used for storage keys
func WithClock(now func() time.Time) ServiceOption {
	return func(svc *KPIReportService) {
		if now != nil {
			svc.now = now
		}
	}
}

// NewKPIReportService creates a new KPIReportService
func NewKPIReportService(source DataSource, calculator *kpi.Calculator, log *zap.Logger, opts ...ServiceOption) *KPIReportService {
	if calculator == nil {
		calculator = kpi.NewCalculator()
	}
	if log == nil {
		log = zap.NewNop()
	}
	svc := &KPIReportService{
		source:     source,
		calculator: calculator,
		logger:     log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// snapshot is one fetch of the source data
type snapshot struct {
	orders  []kpi.Order
	members []kpi.Member
}

func (s *KPIReportService) load(ctx context.Context, withMembers bool) (*snapshot, error) {
	orders, err := s.source.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	snap := &snapshot{orders: orders}
	if withMembers {
		members, err := s.source.ListMembers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load members: %w", err)
		}
		snap.members = members
	}
	return snap, nil
}

// scopedOrders applies range, store and user to the order snapshot
func (s *KPIReportService) scopedOrders(snap *snapshot, q ReportQuery) []kpi.Order {
	return s.calculator.FilterOrders(snap.orders, q.Scope())
}

// scopedMembers narrows members to the selected user. Consumption detection
// still sees every order.
func scopedMembers(members []kpi.Member, q ReportQuery) []kpi.Member {
	if q.User == "" {
		return members
	}
	out := make([]kpi.Member, 0, 1)
	for _, m := range members {
		if m.Name == q.User {
			out = append(out, m)
		}
	}
	return out
}

// Retention returns the Day0..Day70 retention rows
func (s *KPIReportService) Retention(ctx context.Context, q ReportQuery) ([]kpi.RetentionRow, error) {
	ctx, finish := s.track(ctx, report.KindRetention, q)
	snap, err := s.load(ctx, false)
	if err != nil {
		return nil, finish(0, err)
	}
	rows := s.calculator.RetentionTable(s.scopedOrders(snap, q))
	finish(len(rows), nil)
	return rows, nil
}

// CohortSummary returns the Day7/14/21 cohort rates
func (s *KPIReportService) CohortSummary(ctx context.Context, q ReportQuery) ([]kpi.CohortSummaryRow, error) {
	ctx, finish := s.track(ctx, report.KindCohort, q)
	snap, err := s.load(ctx, false)
	if err != nil {
		return nil, finish(0, err)
	}
	rows := s.calculator.CohortSummary(s.scopedOrders(snap, q))
	finish(len(rows), nil)
	return rows, nil
}

// BasicKPI returns active users, margin and the product table
func (s *KPIReportService) BasicKPI(ctx context.Context, q ReportQuery) (*kpi.BasicKPIResult, error) {
	ctx, finish := s.track(ctx, report.KindBasic, q)
	snap, err := s.load(ctx, false)
	if err != nil {
		return nil, finish(0, err)
	}
	res := s.calculator.BasicKPI(s.scopedOrders(snap, q))
	finish(res.TotalOrders, nil)
	return &res, nil
}

// RepurchaseRate returns the share of members who bought again
func (s *KPIReportService) RepurchaseRate(ctx context.Context, q ReportQuery) (*kpi.RepurchaseRateResult, error) {
	ctx, finish := s.track(ctx, report.KindRepurchase, q)
	snap, err := s.load(ctx, true)
	if err != nil {
		return nil, finish(0, err)
	}
	res := s.calculator.RepurchaseRate(scopedMembers(snap.members, q), snap.orders, q.Range)
	finish(res.EligibleMembers, nil)
	return &res, nil
}

// RepurchasePeriod returns days between consumption and the next purchase
func (s *KPIReportService) RepurchasePeriod(ctx context.Context, q ReportQuery) (*kpi.RepurchasePeriodResult, error) {
	ctx, finish := s.track(ctx, report.KindRepurchase, q)
	snap, err := s.load(ctx, true)
	if err != nil {
		return nil, finish(0, err)
	}
	res := s.calculator.AvgRepurchasePeriod(scopedMembers(snap.members, q), snap.orders, q.Range)
	finish(res.PeriodCount, nil)
	return &res, nil
}

// ConsumptionPeriod returns days from purchase to exhaustion per ticket
func (s *KPIReportService) ConsumptionPeriod(ctx context.Context, q ReportQuery) (*kpi.ConsumptionPeriodResult, error) {
	ctx, finish := s.track(ctx, report.KindConsumption, q)
	snap, err := s.load(ctx, true)
	if err != nil {
		return nil, finish(0, err)
	}
	res := s.calculator.AvgConsumptionPeriod(scopedMembers(snap.members, q), snap.orders, q.Range)
	finish(len(res.UserDetails), nil)
	return &res, nil
}

// Tables renders a report kind into its tables from one snapshot
func (s *KPIReportService) Tables(ctx context.Context, q ReportQuery, kind report.Kind) ([]report.Table, error) {
	ctx, finish := s.track(ctx, kind, q)
	snap, err := s.load(ctx, needsMembers(kind))
	if err != nil {
		return nil, finish(0, err)
	}
	tables, err := s.tablesFor(snap, q, kind)
	if err != nil {
		return nil, finish(0, err)
	}
	rows := 0
	for _, t := range tables {
		rows += len(t.Rows)
	}
	finish(rows, nil)
	return tables, nil
}

func needsMembers(kind report.Kind) bool {
	switch kind {
	case report.KindRepurchase, report.KindConsumption, report.KindAll:
		return true
	}
	return false
}

func (s *KPIReportService) tablesFor(snap *snapshot, q ReportQuery, kind report.Kind) ([]report.Table, error) {
	c := s.calculator
	switch kind {
	case report.KindRetention:
		return []report.Table{report.RetentionTable(c.RetentionTable(s.scopedOrders(snap, q)))}, nil
	case report.KindCohort:
		return []report.Table{report.CohortSummaryTable(c.CohortSummary(s.scopedOrders(snap, q)))}, nil
	case report.KindBasic:
		res := c.BasicKPI(s.scopedOrders(snap, q))
		return []report.Table{report.BasicSummaryTable(res), report.ActiveUserTable(res)}, nil
	case report.KindProducts:
		return []report.Table{report.ProductTable(c.BasicKPI(s.scopedOrders(snap, q)))}, nil
	case report.KindRepurchase:
		members := scopedMembers(snap.members, q)
		return []report.Table{
			report.RepurchaseRateTable(c.RepurchaseRate(members, snap.orders, q.Range)),
			report.RepurchasePeriodTable(c.AvgRepurchasePeriod(members, snap.orders, q.Range)),
		}, nil
	case report.KindConsumption:
		res := c.AvgConsumptionPeriod(scopedMembers(snap.members, q), snap.orders, q.Range)
		return []report.Table{report.ConsumptionTicketTable(res), report.ConsumptionDetailTable(res)}, nil
	case report.KindAll:
		var all []report.Table
		for _, k := range report.Kinds() {
			if k == report.KindAll {
				continue
			}
			tables, err := s.tablesFor(snap, q, k)
			if err != nil {
				return nil, err
			}
			all = append(all, tables...)
		}
		return all, nil
	}
	return nil, fmt.Errorf("%w: %q", report.ErrUnknownKind, kind)
}

// Export renders a report kind into a file
func (s *KPIReportService) Export(ctx context.Context, q ReportQuery, kind report.Kind, format export.Format) (*ExportFile, error) {
	tables, err := s.Tables(ctx, q, kind)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "kpi_report", "export",
		telemetry.WithAttribute("kpi.report", string(kind)),
		telemetry.WithAttribute("kpi.format", string(format)),
	)
	defer span.End()

	start := time.Now()
	data, err := export.Encode(format, tables...)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.WithLogger(ctx, s.logger).Error("Failed to encode export",
			zap.String("report", string(kind)),
			zap.String("format", string(format)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}

	file := &ExportFile{
		FileName:    report.FileName(report.ScopeLabel(q.Store, q.User), kind.Name(), q.Range, format.Extension()),
		ContentType: format.ContentType(),
		Data:        data,
	}
	s.metrics.RecordExport(ctx, string(kind), string(format), len(data))
	telemetry.SetAttribute(span, "kpi.export.bytes", len(data))
	logger.WithLogger(ctx, s.logger).Info("Export rendered",
		zap.String("report", string(kind)),
		zap.String("file", file.FileName),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)
	return file, nil
}

// Publish renders a report and uploads it, returning a download link
func (s *KPIReportService) Publish(ctx context.Context, q ReportQuery, kind report.Kind, format export.Format) (*PublishedExport, error) {
	if s.storage == nil {
		return nil, ErrStorageNotConfigured
	}

	file, err := s.Export(ctx, q, kind, format)
	if err != nil {
		return nil, err
	}

	key := storage.ExportKey(s.now(), file.FileName)
	ctx, span := telemetry.StartServiceSpan(ctx, "kpi_report", "publish", telemetry.WithAttribute("storage.key", key))
	defer span.End()

	if err := s.storage.Upload(ctx, key, file.Data, file.ContentType); err != nil {
		telemetry.RecordError(span, err)
		logger.WithLogger(ctx, s.logger).Error("Failed to upload export", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}

	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, key, 0)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.WithLogger(ctx, s.logger).Error("Failed to sign export URL", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}

	published := &PublishedExport{
		Key:      key,
		FileName: file.FileName,
		URL:      url,
		Size:     len(file.Data),
	}
	if !expiresAt.IsZero() {
		published.ExpiresAt = &expiresAt
	}
	logger.WithLogger(ctx, s.logger).Info("Export published", zap.String("key", key))
	return published, nil
}

// track opens a span for one report run. The returned finish logs the
// outcome, records metrics, ends the span and passes err through.
func (s *KPIReportService) track(ctx context.Context, kind report.Kind, q ReportQuery) (context.Context, func(rows int, err error) error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "kpi_report", string(kind),
		telemetry.WithAttribute("kpi.report", string(kind)),
		telemetry.WithAttribute("kpi.start_date", q.Range.StartDate),
		telemetry.WithAttribute("kpi.end_date", q.Range.EndDate),
	)
	if q.Store != "" {
		telemetry.SetAttribute(span, "kpi.store", q.Store)
	}
	return ctx, func(rows int, err error) error {
		defer span.End()
		s.metrics.RecordReport(ctx, string(kind), time.Since(start), err)
		if err != nil {
			telemetry.RecordError(span, err)
			logger.WithLogger(ctx, s.logger).Error("Report failed",
				zap.String("report", string(kind)),
				zap.Error(err),
			)
			return err
		}
		telemetry.SetAttribute(span, "kpi.rows", rows)
		logger.WithLogger(ctx, s.logger).Debug("Report computed",
			zap.String("report", string(kind)),
			zap.Int("rows", rows),
		)
		return nil
	}
}
