package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// ReportMetrics counts report runs and export sizes. A nil *ReportMetrics
// records nothing.
type ReportMetrics struct {
	runs        *Counter
	duration    *Histogram
	exports     *Counter
	exportBytes *Counter
}

// NewReportMetrics registers the report instruments on meter
func NewReportMetrics(meter metric.Meter) (*ReportMetrics, error) {
	runs, err := NewCounter(meter, "kpi.report.runs", "Number of KPI report computations", "{run}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "kpi.report.duration",
		Description: "Time to load source data and compute a KPI report",
		Unit:        "s",
		Boundaries:  ReportDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	exports, err := NewCounter(meter, "kpi.export.files", "Number of rendered export files", "{file}")
	if err != nil {
		return nil, err
	}
	exportBytes, err := NewCounter(meter, "kpi.export.size", "Bytes of rendered export files", "By")
	if err != nil {
		return nil, err
	}
	return &ReportMetrics{runs: runs, duration: duration, exports: exports, exportBytes: exportBytes}, nil
}

// RecordReport records one report computation
func (m *ReportMetrics) RecordReport(ctx context.Context, report string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.runs.Inc(ctx, AttrReport.String(report), AttrOutcome.String(outcome))
	m.duration.RecordDuration(ctx, elapsed, AttrReport.String(report))
}

// RecordExport records one rendered file
func (m *ReportMetrics) RecordExport(ctx context.Context, report, format string, size int) {
	if m == nil {
		return
	}
	m.exports.Inc(ctx, AttrReport.String(report), AttrFormat.String(format))
	m.exportBytes.Add(ctx, int64(size), AttrReport.String(report), AttrFormat.String(format))
}
